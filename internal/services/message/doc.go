// Package message turns application messages into signed wire frames and
// back.
//
// Outbound: the router stamps sender, id and timestamp, encrypts direct
// messages for the recipient's published key, signs the transmitted fields
// and hands the frame to the connection queue. A direct message whose
// recipient key cannot be resolved is rejected, never sent in the clear.
//
// Inbound: every decodable frame is verified against the sender's signing
// key, decrypted when marked encrypted, annotated with a trust status and
// pushed onto a bounded channel. Frames failing verification or decryption
// are still delivered; the embedding application decides what to do with
// them.
package message
