package subscriber_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	mochi "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hospitech/bedwatch/internal/aescbc"
	"github.com/hospitech/bedwatch/internal/panel"
	"github.com/hospitech/bedwatch/internal/subscriber"
)

const mochiTCPPort int = 18831

func startMochi(t *testing.T) *mochi.Server {
	t.Helper()

	server := mochi.New(&mochi.Options{InlineClient: true})
	require.NoError(t, server.AddHook(new(auth.AllowHook), nil))

	cfg := listeners.NewTCP(listeners.Config{
		Type:    "tcp",
		Address: fmt.Sprintf("localhost:%d", mochiTCPPort),
	})
	require.NoError(t, server.AddListener(cfg))
	require.NoError(t, server.Serve())

	t.Cleanup(func() { server.Close() })
	return server
}

func TestSubscriberWithMochi(t *testing.T) {
	server := startMochi(t)

	cipher, err := aescbc.New(
		[]byte("SEGURANCA1234567"),
		[]byte("INICIALIV1234567"),
	)
	require.NoError(t, err)

	registry := panel.NewRegistry(map[string]panel.Reading{
		"t/temp":  panel.Temperature,
		"t/hum":   panel.Humidity,
		"t/alert": panel.Alert,
	})
	store := panel.NewStore()

	sub := subscriber.New(
		subscriber.Settings{
			Hostname:  "localhost",
			TCPPort:   mochiTCPPort,
			ClientID:  "bedwatchmochi",
			KeepAlive: 30 * time.Second,
		},
		registry,
		cipher,
		store,
	)

	require.NoError(t, sub.Start(context.Background()))
	t.Cleanup(func() { _ = sub.Stop() })
	require.Equal(t, subscriber.SubscribedAll, sub.State())

	t.Run("EncryptedAlertReachesStore", func(t *testing.T) {
		require.NoError(t, server.Publish(
			"t/alert", cipher.Encrypt("ATIVO"), false, 1,
		))

		require.Eventually(t, func() bool {
			_, _, ok := store.Last(panel.Alert)
			return ok
		}, 5*time.Second, 10*time.Millisecond)

		facade := panel.NewFacade(store, nil)
		view := facade.Current(5 * time.Second)
		assert.Equal(t, "ATIVO", view[panel.Alert])
	})

	t.Run("BadCiphertextLeavesStoreUntouched", func(t *testing.T) {
		require.NoError(t, server.Publish(
			"t/temp", []byte("misaligned garbage"), false, 1,
		))
		require.NoError(t, server.Publish(
			"t/hum", cipher.Encrypt("60"), false, 1,
		))

		// The humidity message was published after the broken one on a
		// single ordered stream, so once it lands the bad message has been
		// fully handled.
		require.Eventually(t, func() bool {
			_, _, ok := store.Last(panel.Humidity)
			return ok
		}, 5*time.Second, 10*time.Millisecond)

		_, _, ok := store.Last(panel.Temperature)
		assert.False(t, ok)
	})

	t.Run("TrimmedPlaintext", func(t *testing.T) {
		require.NoError(t, server.Publish(
			"t/temp", cipher.Encrypt(" 36.5 \n"), false, 1,
		))

		require.Eventually(t, func() bool {
			value, _, ok := store.Last(panel.Temperature)
			return ok && value == "36.5"
		}, 5*time.Second, 10*time.Millisecond)
	})

	t.Run("SecondStartRefused", func(t *testing.T) {
		var startedErr *subscriber.AlreadyStartedError
		require.ErrorAs(t, sub.Start(context.Background()), &startedErr)
	})
}

func TestSubscriberBrokerUnreachable(t *testing.T) {
	cipher, err := aescbc.New(
		[]byte("SEGURANCA1234567"),
		[]byte("INICIALIV1234567"),
	)
	require.NoError(t, err)

	sub := subscriber.New(
		subscriber.Settings{
			// Nothing listens here.
			Hostname:  "localhost",
			TCPPort:   18899,
			ClientID:  "bedwatchnone",
			KeepAlive: 30 * time.Second,
		},
		panel.DefaultRegistry(),
		cipher,
		panel.NewStore(),
	)

	var connErr *subscriber.ConnectionError
	require.ErrorAs(t, sub.Start(context.Background()), &connErr)
	assert.Equal(t, subscriber.Failed, sub.State())
}
