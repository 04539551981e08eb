// Package httpproto implements the small HTTP/1.1 subset spoken by the
// appliance server: one request per connection, GET and POST only, query and
// urlencoded form parameters, and responses that always close the connection.
//
// There is no keep-alive, chunked encoding, compression or TLS.
package httpproto
