package logger

import "log/slog"

// Attribute helpers keep log field names consistent across the codebase.

func Error(err error) slog.Attr {
	return slog.Any("error", err)
}

func Component(name string) slog.Attr {
	return slog.String("component", name)
}

func UserID(id string) slog.Attr {
	return slog.String("user_id", id)
}

func EventID(id string) slog.Attr {
	return slog.String("event_id", id)
}

func CustomerID(id string) slog.Attr {
	return slog.String("customer_id", id)
}
