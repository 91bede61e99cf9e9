// Package operators implements the operator-execution layer: each graph node
// kind binds a typed parameter block and a typed GPU kernel inside a generic
// Operator, and runs on a shared command buffer.
//
// The package provides a registry mapping operator kinds to their argument
// roles and to a creator producing the concrete operator. Adding a kind means
// one Register call plus one parameter block, kernel and operator type.
//
// Supported kinds: conv2d, batch_norm, relu, elementwise_add, feed, fetch.
package operators
