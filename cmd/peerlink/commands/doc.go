// Package commands defines the peerlink CLI and wires dependencies for subcommands.
//
// Commands
//
//   - init         Create the local identity and a config file
//   - fingerprint  Print the identity fingerprint
//   - register     Publish your keys under a username
//   - login        Check that the server accepts your identity
//   - send         Encrypt, sign and deliver one message
//   - listen       Stay connected and print incoming messages
//   - presence     List online and offline peers
//   - describe     Read or publish a descriptions blob
//
// # Configuration
//
// Settings come from $HOME/.peerlink/config.yaml (see --home) with flags
// layered on top. Only flags given on the command line override the file.
// The keystore passphrase is read from -p or PEERLINK_PASSPHRASE.
package commands
