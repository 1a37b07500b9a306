// Package client runs a diagnostic session against a CAN-over-TCP gateway.
//
// A Session dials the gateway once, starts one periodic transmitter per
// configured message on the shared connection, and prints whatever the
// gateway sends back:
//
//	sess, err := client.New(cfg)
//	if err != nil {
//	    return err
//	}
//	if err := sess.Dial(ctx); err != nil {
//	    return err
//	}
//	defer sess.Close()
//	err = sess.Run(ctx, os.Stdout)
//
// Run returns when ctx is cancelled, when no data arrives within the read
// timeout, or when the gateway closes the connection. In every case all
// transmitters are stopped before Run returns. The connection is never
// re-established.
//
// Received bytes are not parsed. Each read is printed as a single
// "Received: <quoted bytes>" line.
package client
