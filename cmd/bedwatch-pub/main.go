// Command bedwatch-pub encrypts a single reading and publishes it, standing
// in for the sensor firmware during manual end-to-end runs:
//
//	bedwatch-pub -topic hospital/cama/temperatura -value 36.5
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/eclipse/paho.golang/paho"
	"github.com/eclipse/paho.golang/paho/session/state"
	"github.com/google/uuid"
	"github.com/lmittmann/tint"

	"github.com/hospitech/bedwatch/internal/aescbc"
	"github.com/hospitech/bedwatch/internal/subscriber"
)

const (
	defaultKey = "SEGURANCA1234567"
	defaultIV  = "INICIALIV1234567"
)

func main() {
	topic := flag.String("topic", "", "wire topic to publish on")
	value := flag.String("value", "", "plaintext reading to encrypt and publish")
	flag.Parse()

	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level: slog.LevelInfo,
	}))

	if *topic == "" || *value == "" {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(context.Background(), logger, *topic, *value); err != nil {
		logger.Error("publish failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, topic, value string) error {
	settings, err := subscriber.SettingsFromEnv()
	if err != nil {
		return err
	}

	cipher, err := aescbc.New([]byte(defaultKey), []byte(defaultIV))
	if err != nil {
		return err
	}

	conn, err := subscriber.TCPConnection(settings.Hostname, settings.TCPPort)(ctx)
	if err != nil {
		return err
	}

	// A fresh client id per run so parallel invocations do not evict each
	// other's sessions.
	clientID := "bedwatch-pub-" + uuid.NewString()[:8]

	client := paho.NewClient(paho.ClientConfig{
		Conn:     conn,
		ClientID: clientID,
		Session:  state.NewInMemory(),
	})

	connack, err := client.Connect(ctx, &paho.Connect{
		ClientID:   clientID,
		CleanStart: true,
		KeepAlive:  30,
	})
	if err != nil {
		return err
	}
	if connack.ReasonCode != 0 {
		return fmt.Errorf(
			"broker rejected connection with reason code %x",
			connack.ReasonCode,
		)
	}
	defer client.Disconnect(&paho.Disconnect{ReasonCode: 0}) //nolint:errcheck

	if _, err := client.Publish(ctx, &paho.Publish{
		Topic:   topic,
		QoS:     1,
		Payload: cipher.Encrypt(value),
	}); err != nil {
		return err
	}

	logger.Info("published", "topic", topic, "value", value)
	return nil
}
