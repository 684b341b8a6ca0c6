package protocol

// This package implements encoding and parsing of the length delimited
// request protocol cask clients use to talk to a Bitcask server.
//
// This protocol aims to be
//
// - easy to implement
// - binary safe
// - unambiguous without any escaping
//
// - `Command` - A client instruction to the server (set, get, delete, merge).
// - `Frame`   - One command and its arguments as sent on the wire.
// - `Reply`   - The bytes a server sends back before closing the connection.
//
// === General Syntax
//
// - segments are `\r\n` delimited
// - the command token comes first and is always followed by `\r\n`
// - each argument is its decimal byte length, `\r\n`, then exactly that many bytes
// - arguments are separated by `\r\n`, there is no terminator after the last one
// - command names are case sensitive and lowercase
//
// For example
//   ```
//     set\r\n3\r\nfoo\r\n3\r\nbar
//     get\r\n3\r\nfoo
//   ```
//
// Because the length decides where an argument ends, arguments may contain any
// bytes, including `\r\n`. A zero length argument is the empty string.
//
// Every command has a fixed arity, see `Arity`. A frame with the wrong number
// of arguments is never encoded.
//
// === set
//
//  ```
//    > set\r\n<len>\r\n<key>\r\n<len>\r\n<value>
//    < OK
//  ```
//
// === get
//
//  ```
//    > get\r\n<len>\r\n<key>
//    < <value>
//  ```
//
// === delete
//
//  ```
//    > delete\r\n<len>\r\n<key>
//    < OK
//  ```
//
// === merge
//
//  ```
//    > merge\r\n
//    < OK
//  ```
//
// === Replies
//
// The protocol has no reply terminator. The reference server writes its reply
// and closes the connection, so a client reads until EOF. Servers may instead
// frame replies the same way arguments are framed (`<len>\r\n<bytes>`), see
// WriteBulk and ReadBulk.
//
// Error replies look like
//
//   ```
//     ERR <errMessage>
//   ```
//
// Where `<errMessage>` is a human readable string
//
