// Package remootio implements the parts of the Remootio WebSocket API needed
// to onboard a device and follow its door state.
//
// A session goes through these steps:
//
//  1. HELLO / SERVER_HELLO: the device reports its API version and serial number
//  2. AUTH: the device answers with a challenge encrypted under the API secret
//     key, carrying a session key and the initial action id
//  3. QUERY: the client sends an encrypted query; the answer carries the
//     current state, after which the client reports Connected
//
// Encrypted frames use AES-256-CBC with PKCS7 padding. Every encrypted frame
// carries an HMAC-SHA256 over the JSON encoding of its data, keyed with the
// API auth key.
//
// Example:
//
//	opts := remootio.NewConnectionOptions("192.168.1.20", secret, auth)
//	client, err := remootio.NewClient(opts, remootio.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	if err := client.Connect(ctx); err != nil {
//	    return err
//	}
//	defer client.Close()
package remootio
