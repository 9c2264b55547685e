// Package log defines the logging contract shared by every lib-resilience
// component.
//
// Components accept a Logger and never construct one themselves; callers that
// do not care about logging can pass nil and get the no-op NoneLogger.
package log
