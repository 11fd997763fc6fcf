// Package queue wraps the SQS operations the CLI exposes: queue URL lookup,
// send, receive, delete and visibility changes.
package queue

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"go.opentelemetry.io/otel/attribute"

	"github.com/keithlinneman/lambda-utility/internal/awsx"
	"github.com/keithlinneman/lambda-utility/internal/xerrors"
)

// API is the subset of *sqs.Client used here.
type API interface {
	GetQueueUrl(ctx context.Context, in *sqs.GetQueueUrlInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueUrlOutput, error)
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, in *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
	ChangeMessageVisibility(ctx context.Context, in *sqs.ChangeMessageVisibilityInput, optFns ...func(*sqs.Options)) (*sqs.ChangeMessageVisibilityOutput, error)
}

const service = "sqs"

// DefaultMaxMessages is used when ReceiveOptions.MaxMessages is zero.
const DefaultMaxMessages = 1

type Client struct {
	api API
	obs awsx.CallObserver
}

// New returns a Client. obs may be nil.
func New(api API, obs awsx.CallObserver) *Client {
	return &Client{api: api, obs: obs}
}

func NewFromConfig(cfg aws.Config, obs awsx.CallObserver) *Client {
	return New(sqs.NewFromConfig(cfg), obs)
}

// Attribute is a typed message attribute. DataType is String, Number or
// Binary, optionally followed by a custom suffix ("Number.int").
type Attribute struct {
	DataType string
	String   string
	Binary   []byte
}

type SendOptions struct {
	DelaySeconds     int32
	Attributes       map[string]Attribute
	SystemAttributes map[string]Attribute

	// FIFO queues only.
	DeduplicationID string
	GroupID         string
}

type ReceiveOptions struct {
	// System attribute names such as All, SentTimestamp, ApproximateReceiveCount.
	AttributeNames        []string
	MessageAttributeNames []string

	// Zero means DefaultMaxMessages. SQS accepts 1 to 10.
	MaxMessages int32

	// Zero leaves the queue default in place.
	VisibilityTimeout int32
	WaitTime          int32

	AttemptID string
}

type Message struct {
	ID            string
	ReceiptHandle string
	Body          string
	MD5OfBody     string
	Attributes    map[string]string
	MessageAttrs  map[string]Attribute
}

type SendResult struct {
	MessageID      string
	SequenceNumber string
}

// QueueURL resolves a queue name to its URL.
func (c *Client) QueueURL(ctx context.Context, name string) (string, error) {
	if name == "" {
		return "", xerrors.New("queue name is required")
	}
	ctx, done := awsx.Track(ctx, c.obs, service, "GetQueueUrl", attribute.String("messaging.destination.name", name))
	out, err := c.api.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{QueueName: aws.String(name)})
	done(err)
	if err != nil {
		return "", xerrors.Wrapf(err, "get queue url for %s", name)
	}
	return aws.ToString(out.QueueUrl), nil
}

func (c *Client) Send(ctx context.Context, queueURL, body string, o SendOptions) (SendResult, error) {
	in := &sqs.SendMessageInput{
		QueueUrl:     aws.String(queueURL),
		MessageBody:  aws.String(body),
		DelaySeconds: o.DelaySeconds,
	}
	if len(o.Attributes) > 0 {
		in.MessageAttributes = make(map[string]types.MessageAttributeValue, len(o.Attributes))
		for k, a := range o.Attributes {
			in.MessageAttributes[k] = types.MessageAttributeValue{
				DataType:    aws.String(a.DataType),
				StringValue: optString(a.String),
				BinaryValue: a.Binary,
			}
		}
	}
	if len(o.SystemAttributes) > 0 {
		in.MessageSystemAttributes = make(map[string]types.MessageSystemAttributeValue, len(o.SystemAttributes))
		for k, a := range o.SystemAttributes {
			in.MessageSystemAttributes[k] = types.MessageSystemAttributeValue{
				DataType:    aws.String(a.DataType),
				StringValue: optString(a.String),
				BinaryValue: a.Binary,
			}
		}
	}
	in.MessageDeduplicationId = optString(o.DeduplicationID)
	in.MessageGroupId = optString(o.GroupID)

	ctx, done := awsx.Track(ctx, c.obs, service, "SendMessage", attribute.String("messaging.destination.name", queueURL))
	out, err := c.api.SendMessage(ctx, in)
	done(err)
	if err != nil {
		return SendResult{}, xerrors.Wrapf(err, "send message to %s", queueURL)
	}
	return SendResult{
		MessageID:      aws.ToString(out.MessageId),
		SequenceNumber: aws.ToString(out.SequenceNumber),
	}, nil
}

func (c *Client) Receive(ctx context.Context, queueURL string, o ReceiveOptions) ([]Message, error) {
	limit := o.MaxMessages
	if limit == 0 {
		limit = DefaultMaxMessages
	}
	in := &sqs.ReceiveMessageInput{
		QueueUrl:                aws.String(queueURL),
		MaxNumberOfMessages:     limit,
		MessageAttributeNames:   o.MessageAttributeNames,
		VisibilityTimeout:       o.VisibilityTimeout,
		WaitTimeSeconds:         o.WaitTime,
		ReceiveRequestAttemptId: optString(o.AttemptID),
	}
	for _, n := range o.AttributeNames {
		in.MessageSystemAttributeNames = append(in.MessageSystemAttributeNames, types.MessageSystemAttributeName(n))
	}

	ctx, done := awsx.Track(ctx, c.obs, service, "ReceiveMessage", attribute.String("messaging.destination.name", queueURL))
	out, err := c.api.ReceiveMessage(ctx, in)
	done(err)
	if err != nil {
		return nil, xerrors.Wrapf(err, "receive from %s", queueURL)
	}

	msgs := make([]Message, 0, len(out.Messages))
	for _, m := range out.Messages {
		msg := Message{
			ID:            aws.ToString(m.MessageId),
			ReceiptHandle: aws.ToString(m.ReceiptHandle),
			Body:          aws.ToString(m.Body),
			MD5OfBody:     aws.ToString(m.MD5OfBody),
			Attributes:    m.Attributes,
		}
		if len(m.MessageAttributes) > 0 {
			msg.MessageAttrs = make(map[string]Attribute, len(m.MessageAttributes))
			for k, v := range m.MessageAttributes {
				msg.MessageAttrs[k] = Attribute{
					DataType: aws.ToString(v.DataType),
					String:   aws.ToString(v.StringValue),
					Binary:   v.BinaryValue,
				}
			}
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

func (c *Client) Delete(ctx context.Context, queueURL, receiptHandle string) error {
	if receiptHandle == "" {
		return xerrors.New("receipt handle is required")
	}
	ctx, done := awsx.Track(ctx, c.obs, service, "DeleteMessage", attribute.String("messaging.destination.name", queueURL))
	_, err := c.api.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(queueURL),
		ReceiptHandle: aws.String(receiptHandle),
	})
	done(err)
	return xerrors.Wrapf(err, "delete message from %s", queueURL)
}

// ChangeVisibility sets the remaining invisibility of a received message.
// Zero makes it visible again immediately.
func (c *Client) ChangeVisibility(ctx context.Context, queueURL, receiptHandle string, seconds int32) error {
	if receiptHandle == "" {
		return xerrors.New("receipt handle is required")
	}
	ctx, done := awsx.Track(ctx, c.obs, service, "ChangeMessageVisibility", attribute.String("messaging.destination.name", queueURL))
	_, err := c.api.ChangeMessageVisibility(ctx, &sqs.ChangeMessageVisibilityInput{
		QueueUrl:          aws.String(queueURL),
		ReceiptHandle:     aws.String(receiptHandle),
		VisibilityTimeout: seconds,
	})
	done(err)
	return xerrors.Wrapf(err, "change visibility in %s", queueURL)
}

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return aws.String(s)
}
