package notify

import (
	"context"
	"strings"

	"go.uber.org/zap/zapcore"
)

// core is a zapcore.Core that forwards every enabled entry to a Notifier.
type core struct {
	zapcore.LevelEnabler
	enc      zapcore.Encoder
	notifier Notifier
}

// NewCore returns a core delivering log lines at or above level to n. Tee it with
// the regular output core so every log line also reaches the chat channel.
func NewCore(n Notifier, level zapcore.LevelEnabler) zapcore.Core {
	if n == nil {
		return zapcore.NewNopCore()
	}

	enc := zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		MessageKey:       "msg",
		LevelKey:         "level",
		EncodeLevel:      zapcore.CapitalLevelEncoder,
		ConsoleSeparator: " ",
	})

	return &core{LevelEnabler: level, enc: enc, notifier: n}
}

func (c *core) With(fields []zapcore.Field) zapcore.Core {
	clone := c.enc.Clone()
	for _, f := range fields {
		f.AddTo(clone)
	}
	return &core{LevelEnabler: c.LevelEnabler, enc: clone, notifier: c.notifier}
}

func (c *core) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *core) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	buf, err := c.enc.EncodeEntry(ent, fields)
	if err != nil {
		return err
	}
	text := strings.TrimSpace(buf.String())
	buf.Free()

	c.notifier.Notify(context.Background(), text)
	return nil
}

func (c *core) Sync() error {
	return nil
}
