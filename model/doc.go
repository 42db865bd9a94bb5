// Package model contains the declarative building blocks shared by activity
// definitions: variables, arguments and the value-or-expression contract used
// to compute their initial values.
//
// Values are resolved against an Env, which the runtime backs with the
// location environment of the executing activity instance.
package model
