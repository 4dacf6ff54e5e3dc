// Package queue provides an unbounded FIFO handoff between goroutines.
//
// A queue has any number of Sender handles and a single Receiver that may be
// shared by many consumer goroutines. Each item is delivered to exactly one
// consumer.
//
// # Basic Usage
//
//	tx, rx := queue.New[func()]()
//
//	go func() {
//	    for {
//	        job, err := rx.Receive()
//	        if err != nil {
//	            return // queue.ErrClosed
//	        }
//	        job()
//	    }
//	}()
//
//	_ = tx.Send(func() { fmt.Println("hello") })
//	tx.Close()
//
// # Closing
//
// Every Sender handle (the original and each Clone) must be closed. When the
// last one is released the queue is closed: receivers first drain the items
// still queued, then observe ErrClosed instead of blocking.
//
// Closing the Receiver disconnects the queue. Pending items are discarded
// and every later Send fails with ErrDisconnected.
package queue
