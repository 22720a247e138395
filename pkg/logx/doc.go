// Package logx is reporter's structured logging facade over zerolog.
//
// Components receive a Logger by value. The zero Logger discards everything,
// so constructors can accept an empty Logger and still work in tests.
package logx
