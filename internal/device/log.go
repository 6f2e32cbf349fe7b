package device

import "log/slog"

// LogPayload is what every device kind's translation collapses to when
// routed to the Log device (slot 0), and what any event becomes when its
// target device is unassigned or unknown (§4.B).
type LogPayload struct {
	Severity string
	Text     string
}

// logHandle adapts the process logger to the dispatcher's handle contract.
type logHandle struct {
	log *slog.Logger
}

func newLogHandle(log *slog.Logger) *logHandle {
	return &logHandle{log: log}
}

func (h *logHandle) Send(payload any) error {
	p, ok := payload.(LogPayload)
	if !ok {
		h.log.Info("device event", "payload", payload)
		return nil
	}
	switch p.Severity {
	case "error":
		h.log.Error(p.Text)
	case "warn":
		h.log.Warn(p.Text)
	default:
		h.log.Info(p.Text)
	}
	return nil
}

func (h *logHandle) Close() error { return nil }
