/*
Package frame holds the STOMP frame model: the closed command set, the
header registry and the text serialization used on the wire.

A frame is written as

	COMMAND\n
	name:value\n   (zero or more)
	\n
	body\x00

Header identity inside a frame is the header name.
*/
package frame
