package main

import (
	"context"
	"encoding/base64"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/keithlinneman/lambda-utility/internal/lambdafn"
	"github.com/keithlinneman/lambda-utility/internal/queue"
)

type invokeJSON struct {
	StatusCode      int32  `json:"status_code"`
	FunctionError   string `json:"function_error,omitempty"`
	ExecutedVersion string `json:"executed_version,omitempty"`
	Payload         string `json:"payload,omitempty"`
}

func cmdInvoke(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "invoke")
	var in lambdafn.InvokeInput
	var payload, payloadFile string
	fs.StringVar(&in.FunctionName, "function", "", "function name or ARN (required)")
	fs.StringVar(&in.InvocationType, "type", "RequestResponse", "Event|RequestResponse|DryRun")
	fs.StringVar(&in.LogType, "log-type", "None", "None|Tail; Tail prints the last 4 KB of the log to stderr")
	fs.StringVar(&in.Qualifier, "qualifier", "", "version or alias")
	fs.StringVar(&payload, "payload", "", "JSON payload")
	fs.StringVar(&payloadFile, "payload-file", "", "read the JSON payload from a file (- for stdin)")
	if err := parseFlags(e, fs, args); err != nil {
		return err
	}
	if in.FunctionName == "" {
		return usagef("invoke: -function is required")
	}
	body, err := readInput(payload, payloadFile, os.Stdin)
	if err != nil {
		return err
	}
	in.Payload = body

	inv, err := e.invoker(ctx)
	if err != nil {
		return err
	}
	res, err := inv.Invoke(ctx, in)
	if err != nil {
		return err
	}
	if res.LogTail != "" {
		fmt.Fprint(e.stderr, res.LogTail)
	}
	if err := writeJSON(e.stdout, invokeJSON{
		StatusCode:      res.StatusCode,
		FunctionError:   res.FunctionError,
		ExecutedVersion: res.ExecutedVersion,
		Payload:         string(res.Payload),
	}); err != nil {
		return err
	}
	return res.Err()
}

// queueFlags picks a queue by URL or by name.
type queueFlags struct {
	url  string
	name string
}

func (q *queueFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&q.url, "queue-url", "", "queue URL")
	fs.StringVar(&q.name, "queue", "", "queue name, resolved to a URL first")
}

func (q *queueFlags) resolve(ctx context.Context, c *queue.Client, cmd string) (string, error) {
	switch {
	case q.url != "" && q.name != "":
		return "", usagef("%s: -queue-url and -queue are mutually exclusive", cmd)
	case q.url != "":
		return q.url, nil
	case q.name != "":
		return c.QueueURL(ctx, q.name)
	default:
		return "", usagef("%s: one of -queue-url or -queue is required", cmd)
	}
}

// parseAttribute reads name=Type:value. Binary values are base64.
func parseAttribute(s string) (string, queue.Attribute, error) {
	name, rest, ok := strings.Cut(s, "=")
	if !ok || name == "" {
		return "", queue.Attribute{}, usagef("attribute %q: want name=Type:value", s)
	}
	typ, val, ok := strings.Cut(rest, ":")
	if !ok || typ == "" {
		return "", queue.Attribute{}, usagef("attribute %q: want name=Type:value", s)
	}
	a := queue.Attribute{DataType: typ}
	base, _, _ := strings.Cut(typ, ".")
	switch base {
	case "String", "Number":
		a.String = val
	case "Binary":
		b, err := base64.StdEncoding.DecodeString(val)
		if err != nil {
			return "", queue.Attribute{}, usagef("attribute %q: binary value must be base64: %v", s, err)
		}
		a.Binary = b
	default:
		return "", queue.Attribute{}, usagef("attribute %q: type must be String, Number or Binary", s)
	}
	return name, a, nil
}

func parseAttributes(list []string) (map[string]queue.Attribute, error) {
	if len(list) == 0 {
		return nil, nil
	}
	out := make(map[string]queue.Attribute, len(list))
	for _, s := range list {
		name, a, err := parseAttribute(s)
		if err != nil {
			return nil, err
		}
		out[name] = a
	}
	return out, nil
}

func cmdSQSURL(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "sqs-url")
	var name string
	fs.StringVar(&name, "queue", "", "queue name (required)")
	if err := parseFlags(e, fs, args); err != nil {
		return err
	}
	if name == "" {
		return usagef("sqs-url: -queue is required")
	}
	c, err := e.queue(ctx)
	if err != nil {
		return err
	}
	u, err := c.QueueURL(ctx, name)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(e.stdout, u)
	return err
}

func cmdSQSSend(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "sqs-send")
	var qf queueFlags
	var body, bodyFile string
	var attrs, sysAttrs listFlag
	var o queue.SendOptions
	qf.register(fs)
	fs.StringVar(&body, "body", "", "message body")
	fs.StringVar(&bodyFile, "body-file", "", "read the message body from a file (- for stdin)")
	delay := fs.Int("delay", 0, "delay delivery by this many seconds (0..900)")
	fs.Var(&attrs, "attr", "message attribute name=Type:value (repeatable)")
	fs.Var(&sysAttrs, "system-attr", "system attribute name=Type:value (repeatable)")
	fs.StringVar(&o.DeduplicationID, "dedup-id", "", "FIFO deduplication id")
	fs.StringVar(&o.GroupID, "group-id", "", "FIFO message group id")
	if err := parseFlags(e, fs, args); err != nil {
		return err
	}

	b, err := readInput(body, bodyFile, os.Stdin)
	if err != nil {
		return err
	}
	if len(b) == 0 {
		return usagef("sqs-send: a non-empty -body or -body-file is required")
	}
	if *delay < 0 || *delay > 900 {
		return usagef("sqs-send: -delay must be 0..900")
	}
	o.DelaySeconds = int32(*delay)
	if o.Attributes, err = parseAttributes(attrs); err != nil {
		return err
	}
	if o.SystemAttributes, err = parseAttributes(sysAttrs); err != nil {
		return err
	}

	c, err := e.queue(ctx)
	if err != nil {
		return err
	}
	u, err := qf.resolve(ctx, c, "sqs-send")
	if err != nil {
		return err
	}
	res, err := c.Send(ctx, u, string(b), o)
	if err != nil {
		return err
	}
	return writeJSON(e.stdout, map[string]string{
		"message_id":      res.MessageID,
		"sequence_number": res.SequenceNumber,
	})
}

type messageJSON struct {
	ID            string            `json:"message_id"`
	ReceiptHandle string            `json:"receipt_handle"`
	Body          string            `json:"body"`
	MD5OfBody     string            `json:"md5_of_body,omitempty"`
	Attributes    map[string]string `json:"attributes,omitempty"`
	MessageAttrs  map[string]string `json:"message_attributes,omitempty"`
}

func cmdSQSReceive(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "sqs-receive")
	var qf queueFlags
	var attrNames, msgAttrNames listFlag
	var o queue.ReceiveOptions
	qf.register(fs)
	maxMsgs := fs.Int("max", queue.DefaultMaxMessages, "maximum messages to return (1..10)")
	visibility := fs.Int("visibility", 0, "visibility timeout in seconds; 0 keeps the queue default")
	wait := fs.Int("wait", 0, "long-poll wait in seconds (0..20)")
	fs.Var(&attrNames, "attribute-name", "system attribute to return, e.g. All or SentTimestamp (repeatable)")
	fs.Var(&msgAttrNames, "message-attribute-name", "message attribute to return, All for every one (repeatable)")
	fs.StringVar(&o.AttemptID, "attempt-id", "", "FIFO receive request attempt id")
	if err := parseFlags(e, fs, args); err != nil {
		return err
	}
	if *maxMsgs < 1 || *maxMsgs > 10 {
		return usagef("sqs-receive: -max must be 1..10")
	}
	if *wait < 0 || *wait > 20 {
		return usagef("sqs-receive: -wait must be 0..20")
	}
	if *visibility < 0 {
		return usagef("sqs-receive: -visibility must not be negative")
	}
	o.MaxMessages = int32(*maxMsgs)
	o.VisibilityTimeout = int32(*visibility)
	o.WaitTime = int32(*wait)
	o.AttributeNames = attrNames
	o.MessageAttributeNames = msgAttrNames

	c, err := e.queue(ctx)
	if err != nil {
		return err
	}
	u, err := qf.resolve(ctx, c, "sqs-receive")
	if err != nil {
		return err
	}
	msgs, err := c.Receive(ctx, u, o)
	if err != nil {
		return err
	}
	for _, m := range msgs {
		out := messageJSON{
			ID:            m.ID,
			ReceiptHandle: m.ReceiptHandle,
			Body:          m.Body,
			MD5OfBody:     m.MD5OfBody,
			Attributes:    m.Attributes,
		}
		if len(m.MessageAttrs) > 0 {
			out.MessageAttrs = make(map[string]string, len(m.MessageAttrs))
			for k, a := range m.MessageAttrs {
				if a.Binary != nil {
					out.MessageAttrs[k] = a.DataType + ":" + base64.StdEncoding.EncodeToString(a.Binary)
				} else {
					out.MessageAttrs[k] = a.DataType + ":" + a.String
				}
			}
		}
		if err := writeJSON(e.stdout, out); err != nil {
			return err
		}
	}
	return nil
}

func cmdSQSDelete(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "sqs-delete")
	var qf queueFlags
	var receipt string
	qf.register(fs)
	fs.StringVar(&receipt, "receipt", "", "receipt handle of the received message (required)")
	if err := parseFlags(e, fs, args); err != nil {
		return err
	}
	if receipt == "" {
		return usagef("sqs-delete: -receipt is required")
	}
	c, err := e.queue(ctx)
	if err != nil {
		return err
	}
	u, err := qf.resolve(ctx, c, "sqs-delete")
	if err != nil {
		return err
	}
	return c.Delete(ctx, u, receipt)
}

func cmdSQSVisibility(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "sqs-visibility")
	var qf queueFlags
	var receipt string
	qf.register(fs)
	fs.StringVar(&receipt, "receipt", "", "receipt handle of the received message (required)")
	timeout := fs.Int("timeout", 0, "new visibility timeout in seconds (0..43200); 0 releases the message")
	if err := parseFlags(e, fs, args); err != nil {
		return err
	}
	if receipt == "" {
		return usagef("sqs-visibility: -receipt is required")
	}
	if *timeout < 0 || *timeout > 43200 {
		return usagef("sqs-visibility: -timeout must be 0..43200")
	}
	c, err := e.queue(ctx)
	if err != nil {
		return err
	}
	u, err := qf.resolve(ctx, c, "sqs-visibility")
	if err != nil {
		return err
	}
	return c.ChangeVisibility(ctx, u, receipt, int32(*timeout))
}
