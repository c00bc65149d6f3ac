// Package logx configures dingtask's structured logging.
//
// This repo uses a small wrapper (logx.Logger) on top of zerolog to keep:
//   - Console output readable (short timestamp + short caller)
//   - File output JSON-structured
//
// A dispatch run lives for seconds, so unlike a long-lived service there
// is no runtime reconfiguration: the logger is built once from config and
// passed down explicitly.
package logx
