package services

import (
	"context"
	"fmt"
	"log"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/iste-sc/portal/db"
	"google.golang.org/api/option"
)

// FCMService pushes notifications to registered devices through Firebase
// Cloud Messaging. When credentials are absent the service stays up but
// every send is skipped, so local development works without Firebase.
type FCMService struct {
	client *messaging.Client
}

func NewFCMService(credentialsFile string) (*FCMService, error) {
	service := &FCMService{}

	if credentialsFile == "" {
		log.Println("FCM: no credentials file configured, push delivery disabled")
		return service, nil
	}

	opt := option.WithCredentialsFile(credentialsFile)
	app, err := firebase.NewApp(context.Background(), nil, opt)
	if err != nil {
		log.Printf("FCM: firebase app not initialized: %v", err)
		return service, nil
	}

	client, err := app.Messaging(context.Background())
	if err != nil {
		log.Printf("FCM: messaging client not initialized: %v", err)
		return service, nil
	}

	service.client = client
	log.Println("FCM: firebase messaging initialized")
	return service, nil
}

// Enabled reports whether pushes will actually go out.
func (s *FCMService) Enabled() bool {
	return s.client != nil
}

// Send delivers a notification to every token and returns how many sends
// succeeded and failed. Disabled clients report zero of each.
func (s *FCMService) Send(ctx context.Context, n db.Notification, tokens []string) (sent, failed int, err error) {
	if s.client == nil || len(tokens) == 0 {
		return 0, 0, nil
	}

	data := map[string]string{
		"notification_id": n.ID,
		"audience":        n.Audience,
	}
	if n.LinkURL != "" {
		data["link_url"] = n.LinkURL
	}

	// The multicast API caps at 500 tokens per call.
	for start := 0; start < len(tokens); start += 500 {
		end := start + 500
		if end > len(tokens) {
			end = len(tokens)
		}

		message := &messaging.MulticastMessage{
			Tokens: tokens[start:end],
			Notification: &messaging.Notification{
				Title: n.Title,
				Body:  n.Body,
			},
			Data: data,
			Android: &messaging.AndroidConfig{
				Priority: "high",
				Notification: &messaging.AndroidNotification{
					Sound: "default",
				},
			},
		}

		resp, sendErr := s.client.SendEachForMulticast(ctx, message)
		if sendErr != nil {
			return sent, failed, fmt.Errorf("fcm multicast failed: %w", sendErr)
		}
		sent += resp.SuccessCount
		failed += resp.FailureCount
	}

	log.Printf("FCM: notification %s delivered to %d devices (%d failed)", n.ID, sent, failed)
	return sent, failed, nil
}
