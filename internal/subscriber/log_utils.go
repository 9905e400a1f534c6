package subscriber

import (
	"context"
	"log/slog"
	"reflect"

	"github.com/iancoleman/strcase"

	"github.com/hospitech/bedwatch/internal/log"
)

type logger struct{ log.Logger }

// Packet dumps an MQTT packet's fields as structured attributes at debug
// level.
func (l logger) Packet(ctx context.Context, name string, packet any) {
	// This is expensive; bail out if we don't need it.
	if !l.Enabled(ctx, slog.LevelDebug) {
		return
	}

	val := realValue(reflect.ValueOf(packet))
	l.Log(ctx, slog.LevelDebug, name, reflectAttrs(val)...)
}

func reflectAttrs(val reflect.Value) []slog.Attr {
	typ := val.Type()
	num := typ.NumField()
	var attrs []slog.Attr
	for i := 0; i < num; i++ {
		f := typ.Field(i)
		if !f.IsExported() {
			continue
		}

		attrs = append(attrs, reflectAttr(
			strcase.ToSnake(f.Name),
			realValue(val.Field(i)),
		)...)
	}
	return attrs
}

func reflectAttr(name string, val reflect.Value) []slog.Attr {
	// Ignore zero values to keep the log cleaner.
	if val.Kind() == reflect.Invalid || val.IsZero() {
		return nil
	}

	switch name {
	// Paho's struct nesting is not particularly useful to log.
	case "properties":
		return reflectAttrs(val)

	// Subscriptions are one-at-a-time for this subscriber.
	case "subscriptions":
		return reflectAttrs(val.Index(0))

	// Fix QoS not being actually PascalCased.
	case "qo_s":
		return []slog.Attr{slog.Any("qos", val.Interface())}
	}

	if v, ok := val.Interface().([]byte); ok {
		return []slog.Attr{slog.Int(name+"_len", len(v))}
	}

	if val.Kind() == reflect.Struct {
		as := reflectAttrs(val)
		if len(as) == 0 {
			return nil
		}

		cpy := make([]any, len(as))
		for i, a := range as {
			cpy[i] = a
		}
		return []slog.Attr{slog.Group(name, cpy...)}
	}

	return []slog.Attr{slog.Any(name, val.Interface())}
}

func realValue(typ reflect.Value) reflect.Value {
	for typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	return typ
}
