// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cloud provides PubSubListener, which turns folder trigger messages
// into ingestion runs.
//
// Logic Flow:
//  1. Listen starts a goroutine blocked in subscription.Receive.
//  2. Each message gets its own span and a fresh cor.Context whose CtxIn
//     holds the raw message body.
//  3. The attached command runs and its errors are logged. The message is
//     Nacked for redelivery only when one of them is retryable; a message
//     that can never succeed is Acked so it is not redelivered forever.
package cloud

import (
	"context"
	"errors"
	"log/slog"

	"cloud.google.com/go/pubsub"
	"github.com/jaycherian/gcp-go-media-indexer/internal/core/cor"
	"github.com/jaycherian/gcp-go-media-indexer/internal/core/model"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// FolderTrigger is the body of a trigger message.
type FolderTrigger struct {
	FolderURL string `json:"folder_url"`
}

// PubSubListener runs a command for every message of a subscription.
type PubSubListener struct {
	client       *pubsub.Client
	subscription *pubsub.Subscription
	command      cor.Command
}

// NewPubSubListener binds a listener to subscriptionID. The command may be
// nil and attached later with SetCommand.
func NewPubSubListener(pubsubClient *pubsub.Client, subscriptionID string, command cor.Command) *PubSubListener {
	var sub *pubsub.Subscription
	if pubsubClient != nil {
		sub = pubsubClient.Subscription(subscriptionID)
	}
	return &PubSubListener{
		client:       pubsubClient,
		subscription: sub,
		command:      command,
	}
}

// SetCommand attaches the command if none is set yet.
func (m *PubSubListener) SetCommand(command cor.Command) {
	if m.command == nil {
		m.command = command
	}
}

// Handle runs the attached command on one message body and reports whether
// the message should be acknowledged: true when the command completed, or
// when it failed only with errors a redelivery cannot fix.
func (m *PubSubListener) Handle(ctx context.Context, data []byte) bool {
	tracer := otel.Tracer("message-listener")
	spanCtx, span := tracer.Start(ctx, "receive-message")
	defer span.End()
	span.SetAttributes(attribute.String("msg", string(data)))

	if m.command == nil {
		span.SetStatus(codes.Error, "no command attached")
		slog.Error("message received but no command is attached", "subscription", m.subscriptionID())
		return false
	}

	chainCtx := cor.NewBaseContext()
	chainCtx.SetContext(spanCtx)
	chainCtx.Add(cor.CtxIn, string(data))
	defer chainCtx.Close()

	m.command.Execute(chainCtx)

	if !chainCtx.HasErrors() {
		span.SetStatus(codes.Ok, "success")
		return true
	}
	span.SetStatus(codes.Error, "failed")
	retry := false
	for name, e := range chainCtx.GetErrors() {
		if Retryable(e) {
			retry = true
		}
		slog.Error("error executing chain", "command", name, "error", e, "retryable", Retryable(e))
	}
	if !retry {
		slog.Warn("dropping message that cannot succeed", "subscription", m.subscriptionID(), "msg", string(data))
	}
	return !retry
}

// Retryable reports whether err may clear up on redelivery. Access and
// service failures may; malformed messages, bad references and panics do
// not. Errors of no known kind, cancellation included, are retried.
func Retryable(err error) bool {
	if err == nil || errors.Is(err, cor.ErrCommandPanicked) {
		return false
	}
	switch model.KindOf(err) {
	case model.KindInvalidReference, model.KindDecode, model.KindNoImages, model.KindNotFound:
		return false
	default:
		return true
	}
}

// Listen receives messages in the background until ctx is done.
func (m *PubSubListener) Listen(ctx context.Context) {
	slog.Info("listening", "subscription", m.subscriptionID())
	go func() {
		err := m.subscription.Receive(ctx, func(_ context.Context, msg *pubsub.Message) {
			if m.Handle(ctx, msg.Data) {
				msg.Ack()
			} else {
				msg.Nack()
			}
		})
		if err != nil {
			slog.Error("error receiving data", "subscription", m.subscriptionID(), "error", err)
		}
	}()
}

func (m *PubSubListener) subscriptionID() string {
	if m.subscription == nil {
		return ""
	}
	return m.subscription.ID()
}
