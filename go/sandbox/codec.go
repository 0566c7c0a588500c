// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package sandbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ServeStream runs the engine loop on a stream of JSON encoded requests,
// one per line, writing JSON encoded events to w. This is the protocol
// spoken by sandbox processes on their stdin and stdout. ServeStream
// returns when r is exhausted, the context is cancelled or a message can
// not be processed.
func ServeStream(ctx context.Context, config Config, r io.Reader, w io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	requests := make(chan Request)
	readErr := make(chan error, 1)
	go func() {
		defer close(requests)
		decoder := json.NewDecoder(r)
		for {
			var request Request
			if err := decoder.Decode(&request); err != nil {
				if !errors.Is(err, io.EOF) {
					readErr <- fmt.Errorf("failed to decode request: %w", err)
				}
				return
			}
			select {
			case requests <- request:
			case <-ctx.Done():
				return
			}
		}
	}()

	encoder := json.NewEncoder(w)
	emit := func(event Event) error {
		return encoder.Encode(event)
	}
	if err := Serve(ctx, config, requests, emit); err != nil {
		return err
	}
	select {
	case err := <-readErr:
		// The host is informed before the stream is closed.
		_ = emit(errorEvent(err))
		return err
	default:
		return nil
	}
}

// eventDecoder reads the events produced by ServeStream.
type eventDecoder struct {
	decoder *json.Decoder
}

func newEventDecoder(r io.Reader) *eventDecoder {
	return &eventDecoder{decoder: json.NewDecoder(r)}
}

// Next returns the next event of the stream or io.EOF if the stream ended.
func (d *eventDecoder) Next() (Event, error) {
	var event Event
	if err := d.decoder.Decode(&event); err != nil {
		if errors.Is(err, io.EOF) {
			return event, io.EOF
		}
		return event, fmt.Errorf("failed to decode event: %w", err)
	}
	return event, nil
}
