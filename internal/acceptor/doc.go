// Package acceptor feeds accepted network connections into a worker pool.
//
// Serve runs a TCP accept loop; every accepted connection becomes exactly one
// job that runs the Handler and then closes the connection. The default
// handler, EchoLine, reads a single line and writes it back.
//
// # Basic Usage
//
//	pool := worker.New(4)
//	srv, err := acceptor.Listen(":5000", pool, nil)
//	if err != nil {
//	    return err
//	}
//	_ = srv.Serve(ctx) // returns once ctx is done
//	pool.Close()       // drain in-flight connections
package acceptor
