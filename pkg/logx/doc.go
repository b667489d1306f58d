// Package logx is slotwatch's logging front end over zerolog.
//
// Loggers are values. A Logger obtained from a Service follows every
// Service.Apply, so components keep their logger across config reloads.
package logx
