package main

import (
	"context"
	"errors"
	"net/http"

	"github.com/gaspardpetit/stompsock/core/logx"
	"github.com/gaspardpetit/stompsock/internal/clientstate"
	"github.com/gaspardpetit/stompsock/internal/config"
	"github.com/gaspardpetit/stompsock/internal/sink"
	"github.com/gaspardpetit/stompsock/internal/sockurl"
	"github.com/gaspardpetit/stompsock/stomp/client"
	"github.com/gaspardpetit/stompsock/stomp/session"
	"github.com/gaspardpetit/stompsock/stomp/transport/wstransport"
)

// errSessionClosed is returned by runner.run when the server ends the
// session without an error.
var errSessionClosed = errors.New("session closed by server")

// runner owns one connection attempt per call to run.
type runner struct {
	cfg        config.ClientConfig
	sink       sink.Sink
	httpClient *http.Client
}

// target returns the dial URL, with a fresh SockJS path when enabled.
func (r *runner) target() (string, error) {
	if r.cfg.SockJS {
		return sockurl.Build(r.cfg.ServerURL)
	}
	u, err := sockurl.WebSocketURL(r.cfg.ServerURL)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

func (r *runner) newClient(url string) *client.Client {
	opts := []client.Option{client.WithHeartbeat(r.cfg.Heartbeat)}
	for name, value := range r.cfg.HeaderMap() {
		opts = append(opts, client.WithHeader(name, value))
	}
	if r.cfg.RandomIDs {
		opts = append(opts, client.WithIDGenerator(session.RandomIDs{}))
	}
	tr := wstransport.New(url, wstransport.Options{ReadLimit: r.cfg.ReadLimit, HTTPClient: r.httpClient})
	return client.New(tr, opts...)
}

// run connects, subscribes every configured destination once CONNECTED and
// blocks until ctx ends or the session drops.
func (r *runner) run(ctx context.Context) error {
	url, err := r.target()
	if err != nil {
		return err
	}
	c := r.newClient(url)
	sub := &subscriber{client: c, destinations: r.cfg.Destinations, sink: r.sink, lost: make(chan error, 1)}
	c.SetDelegate(sub)

	clientstate.Update(func(s *clientstate.State) {
		s.Status = session.AwaitingOpen.String()
		s.URL = url
	})
	logx.Log.Info().Str("url", url).Msg("connecting")

	dialCtx, cancel := context.WithTimeout(ctx, r.cfg.DialTimeout)
	err = c.Connect(dialCtx)
	cancel()
	if err != nil {
		clientstate.SetError(err)
		clientstate.SetStatus(session.Disconnected.String(), false)
		logx.Log.Warn().Err(err).Str("url", url).Msg("connect failed")
		return err
	}

	select {
	case <-ctx.Done():
		if err := c.Disconnect(); err != nil {
			logx.Log.Debug().Err(err).Msg("disconnect")
		}
		clientstate.SetStatus(session.Disconnected.String(), false)
		logx.Log.Info().Msg("disconnected")
		return nil
	case <-c.Done():
	}
	clientstate.SetStatus(session.Disconnected.String(), false)
	select {
	case err := <-sub.lost:
		logx.Log.Warn().Err(err).Msg("session lost")
		return err
	default:
		logx.Log.Warn().Msg("session closed by server")
		return errSessionClosed
	}
}

// subscriber is the client delegate used by the CLI.
type subscriber struct {
	client       *client.Client
	destinations []string
	sink         sink.Sink
	lost         chan error
}

func (s *subscriber) OnConnected() {
	clientstate.SetStatus(session.Connected.String(), true)
	for _, d := range s.destinations {
		id, err := s.client.Subscribe(d, nil)
		if err != nil {
			logx.Log.Warn().Err(err).Str("destination", d).Msg("subscribe failed")
			clientstate.SetError(err)
			continue
		}
		logx.Log.Info().Str("destination", d).Str("id", id).Msg("subscribed")
	}
	subs := s.client.Subscriptions()
	clientstate.Update(func(st *clientstate.State) { st.Subscriptions = subs })
}

func (s *subscriber) OnError(err error) {
	clientstate.SetError(err)
	if s.client.State() == session.Disconnected {
		select {
		case s.lost <- err:
		default:
		}
		return
	}
	logx.Log.Warn().Err(err).Msg("stomp error")
}

func (s *subscriber) OnDataReceived(data []byte, destination string) {
	if err := s.sink.Deliver(context.Background(), destination, data); err != nil {
		logx.Log.Warn().Err(err).Str("destination", destination).Msg("delivery failed")
	}
	clientstate.Update(func(st *clientstate.State) { st.Messages++ })
}
