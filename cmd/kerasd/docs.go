package main

// General API documentation for swaggo. Generate with `swag init -g cmd/kerasd/docs.go`.
//
// @title           kerasbridge API
// @version         1.0
// @description     HTTP API for building Keras objects in an external Python interpreter.
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
