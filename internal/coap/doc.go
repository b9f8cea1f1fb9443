// Package coap is the CoAP transport of the LWM2M Registration Interface.
//
// It listens on UDP, turns each request into a registration.Operation,
// hands it to a Handler (normally *registration.Controller) and writes the
// Result back as a CoAP response:
//
//	POST   /rd?ep=..&lt=..   -> Register    2.01 Created, Location-Path rd/{handle}
//	PUT    /rd/{handle}      -> Update      2.04 Changed
//	POST   /rd/{handle}      -> Update      2.04 Changed
//	DELETE /rd/{handle}      -> Deregister  2.02 Deleted
//
// Retransmission, deduplication and token matching are handled by
// github.com/plgd-dev/go-coap/v3.
//
// Usage:
//
//	srv := coap.NewServer(coap.Config{Address: ":5683", Handler: controller})
//	if err := srv.Start(ctx); err != nil {
//	    return err
//	}
//	defer srv.Stop()
package coap
