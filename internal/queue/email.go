package queue

import (
	"context"
	"encoding/json"
)

// TypeVerifyEmail marks messages carrying a verification-code delivery.
const TypeVerifyEmail = "verify_email"

// EmailJob is the payload for a verification-code email. Purpose is
// either "registration" or "password_reset" and only shapes the wording.
type EmailJob struct {
	Email   string `json:"email"`
	Code    string `json:"code"`
	Purpose string `json:"purpose"`
}

// PublishEmail enqueues a verification email for the mail worker.
func PublishEmail(ctx context.Context, q Queue, job EmailJob) error {
	body, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return q.Publish(ctx, Message{Type: TypeVerifyEmail, Body: body})
}

// DecodeEmail parses a TypeVerifyEmail message body.
func DecodeEmail(msg Message) (EmailJob, error) {
	var job EmailJob
	err := json.Unmarshal(msg.Body, &job)
	return job, err
}
