package model

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// StreamBatch is the stream-trigger payload carrying one batch of records.
type StreamBatch struct {
	Records []StreamRecord `json:"Records"`
}

// StreamRecord wraps a single base64 encoded log event.
type StreamRecord struct {
	Kinesis StreamData `json:"kinesis"`
}

type StreamData struct {
	Data         string `json:"data"`
	PartitionKey string `json:"partitionKey,omitempty"`
}

// NewStreamBatch encodes events into a stream batch partitioned by source.
func NewStreamBatch(events []LogEvent) (StreamBatch, error) {
	batch := StreamBatch{Records: make([]StreamRecord, 0, len(events))}
	for i := range events {
		record, err := EncodeRecord(&events[i])
		if err != nil {
			return StreamBatch{}, err
		}
		batch.Records = append(batch.Records, StreamRecord{
			Kinesis: StreamData{Data: string(record), PartitionKey: events[i].Source},
		})
	}
	return batch, nil
}

// EncodeRecord wraps an event in the transport envelope.
func EncodeRecord(event *LogEvent) ([]byte, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}
	encoded := make([]byte, base64.StdEncoding.EncodedLen(len(data)))
	base64.StdEncoding.Encode(encoded, data)
	return encoded, nil
}

// DecodeRecord unwraps the transport envelope and parses the event inside.
func DecodeRecord(record []byte) (*LogEvent, error) {
	data := strings.TrimSpace(string(record))
	if data == "" {
		return nil, fmt.Errorf("%w: empty record", ErrMalformedRecord)
	}
	payload, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base64: %v", ErrMalformedRecord, err)
	}
	return ParseLogEvent(payload)
}
