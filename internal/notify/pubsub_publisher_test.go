package notify

import (
	"context"
	"encoding/json"
	"testing"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func TestPubSubPublisherPublishesMessage(t *testing.T) {
	ctx := context.Background()
	srv := pstest.NewServer()
	defer srv.Close()

	client, err := pubsub.NewClient(ctx, "test-project",
		option.WithEndpoint(srv.Addr),
		option.WithoutAuthentication(),
		option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	)
	if err != nil {
		t.Fatalf("pubsub.NewClient: %v", err)
	}
	defer func() {
		_ = client.Close()
	}()

	topic, err := client.CreateTopic(ctx, "mail-jobs")
	if err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}

	publisher, err := NewPubSubPublisher(topic)
	if err != nil {
		t.Fatalf("NewPubSubPublisher: %v", err)
	}

	msg := Message{
		To:       "buyer@example.com",
		Subject:  "Your invoice",
		HTMLBody: "<p>Invoice 0042</p>",
	}
	if err := publisher.Send(ctx, msg); err != nil {
		t.Fatalf("Send: %v", err)
	}

	messages := srv.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}

	var payload Message
	if err := json.Unmarshal(messages[0].Data, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.To != msg.To || payload.Subject != msg.Subject {
		t.Fatalf("unexpected payload %#v", payload)
	}
	if attr := messages[0].Attributes["kind"]; attr != "email" {
		t.Fatalf("expected kind attribute, got %q", attr)
	}
}

func TestPubSubPublisherRequiresRecipient(t *testing.T) {
	publisher := &PubSubPublisher{topic: &pubsub.Topic{}, marshal: json.Marshal}
	if err := publisher.Send(context.Background(), Message{Subject: "no recipient"}); err == nil {
		t.Fatal("expected error for missing recipient")
	}
}
