package link

import (
	"fmt"
	"time"

	"github.com/danmuck/spilink/internal/protocol/datatype"
	"github.com/danmuck/spilink/internal/protocol/messaging"
	"github.com/rs/zerolog/log"
)

// Data is a reassembled message body. The caller owns Bytes.
type Data struct {
	Stream string
	Bytes  []byte
}

func (d Data) Size() uint32 { return uint32(len(d.Bytes)) }

// Metadata is a reassembled metadata block with its datatype tag.
type Metadata struct {
	Stream string
	Bytes  []byte
	Type   datatype.Type
}

func (m Metadata) Size() uint32 { return uint32(len(m.Bytes)) }

// Decode returns the typed object registered for m.Type.
func (m Metadata) Decode() (any, error) {
	return datatype.Decode(m.Type, m.Bytes)
}

// Parse decodes the metadata into out.
func (m Metadata) Parse(out any) error {
	return datatype.Parse(m.Bytes, out)
}

// Message pairs a body with its metadata. It is only returned when both
// halves were read successfully.
type Message struct {
	Data     Data
	Metadata Metadata
	Type     datatype.Type
}

// ReqData reads the size, then the body, of the head message on stream.
func (e *Engine) ReqData(stream string) (Data, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	start := time.Now()
	d, err := e.reqData(stream)
	e.record("req_data", start, len(d.Bytes), err)
	return d, err
}

// ReqMetadata reads the size, then the metadata block, of the head message on
// stream.
func (e *Engine) ReqMetadata(stream string) (Metadata, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	start := time.Now()
	m, err := e.reqMetadata(stream)
	e.record("req_metadata", start, len(m.Bytes), err)
	return m, err
}

// ReqMessage reads data then metadata. If either half fails the other is
// discarded and a zero Message is returned with the first error.
func (e *Engine) ReqMessage(stream string) (Message, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	start := time.Now()

	data, dataErr := e.reqData(stream)
	meta, metaErr := e.reqMetadata(stream)
	var err error
	switch {
	case dataErr != nil:
		err = dataErr
	case metaErr != nil:
		err = metaErr
	}
	if err != nil {
		log.Warn().Err(err).Str("stream", stream).
			Bool("data_ok", dataErr == nil).Bool("meta_ok", metaErr == nil).
			Msg("link.ReqMessage discarded partial message")
		e.record("req_message", start, 0, err)
		return Message{}, err
	}
	e.record("req_message", start, len(data.Bytes)+len(meta.Bytes), nil)
	return Message{Data: data, Metadata: meta, Type: meta.Type}, nil
}

// ReqDataPartial reads size bytes of the head message starting at offset,
// without a preceding size query.
func (e *Engine) ReqDataPartial(stream string, offset, size uint32) (Data, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	start := time.Now()
	body, _, err := e.getMessage(messaging.GetMessagePart, stream, messaging.PartArgument(stream, offset, size), size)
	e.record("req_data_partial", start, len(body), err)
	if err != nil {
		return Data{}, err
	}
	return Data{Stream: stream, Bytes: body}, nil
}

// GetStreams lists the peer's streams. A no-data response is an empty list,
// not an error.
func (e *Engine) GetStreams() ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	start := time.Now()
	streams, err := e.getStreams()
	e.record("get_streams", start, 0, err)
	return streams, err
}

// PopMessage discards the head message of stream on the peer.
func (e *Engine) PopMessage(stream string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	start := time.Now()
	err := e.pop(messaging.PopMessage, stream)
	e.record("pop_message", start, 0, err)
	return err
}

// PopMessages discards every queued message on the peer.
func (e *Engine) PopMessages() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	start := time.Now()
	err := e.pop(messaging.PopMessages, "")
	e.record("pop_messages", start, 0, err)
	return err
}

// ChunkMessage streams the head message of stream through fn without
// buffering it. With a nil fn the transfer still completes, every chunk is
// dropped with a warning, and ErrUsage is returned.
func (e *Engine) ChunkMessage(stream string, fn ChunkFunc) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	start := time.Now()
	var delivered int
	err := e.chunkMessage(stream, fn, &delivered)
	e.record("chunk_message", start, delivered, err)
	return err
}

func (e *Engine) chunkMessage(stream string, fn ChunkFunc, delivered *int) error {
	size, err := e.getSize(messaging.GetSize, stream)
	if err != nil {
		return err
	}
	err = e.drain(messaging.GetMessage, messaging.StreamArgument(stream), size, func(chunk []byte, _ uint32) {
		if fn == nil {
			log.Warn().Str("stream", stream).Int("chunk", len(chunk)).Msg("link.ChunkMessage called without a chunk handler")
			return
		}
		fn(chunk, size)
		*delivered += len(chunk)
	})
	if err != nil {
		return &RequestError{Op: "chunk_message", Cmd: messaging.GetMessage, Stream: stream, Err: err}
	}
	if fn == nil {
		return &RequestError{Op: "chunk_message", Cmd: messaging.GetMessage, Stream: stream,
			Err: fmt.Errorf("%w: no chunk handler", ErrUsage)}
	}
	return nil
}

func (e *Engine) reqData(stream string) (Data, error) {
	size, err := e.getSize(messaging.GetSize, stream)
	if err != nil {
		return Data{}, err
	}
	body, _, err := e.getMessage(messaging.GetMessage, stream, messaging.StreamArgument(stream), size)
	if err != nil {
		return Data{}, err
	}
	return Data{Stream: stream, Bytes: body}, nil
}

func (e *Engine) reqMetadata(stream string) (Metadata, error) {
	size, err := e.getSize(messaging.GetMetaSize, stream)
	if err != nil {
		return Metadata{}, err
	}
	meta, dt, err := e.getMessage(messaging.GetMetadata, stream, messaging.StreamArgument(stream), size)
	if err != nil {
		return Metadata{}, err
	}
	return Metadata{Stream: stream, Bytes: meta, Type: dt}, nil
}

func (e *Engine) getStreams() ([]string, error) {
	payload, err := e.exchange(messaging.GetStreams, messaging.StreamArgument(""))
	if err != nil {
		return []string{}, &RequestError{Op: "get_streams", Cmd: messaging.GetStreams, Err: err}
	}
	if payload == nil {
		return []string{}, nil
	}
	streams, err := messaging.DecodeStreams(payload)
	if err != nil {
		return []string{}, &RequestError{Op: "get_streams", Cmd: messaging.GetStreams, Err: fmt.Errorf("%w: %w", ErrFraming, err)}
	}
	return streams, nil
}

func (e *Engine) pop(cmd messaging.Command, stream string) error {
	fail := func(err error) error {
		return &RequestError{Op: "pop", Cmd: cmd, Stream: stream, Err: err}
	}
	payload, err := e.exchange(cmd, messaging.StreamArgument(stream))
	if err != nil {
		return fail(err)
	}
	if payload == nil {
		return fail(fmt.Errorf("%w: %w", ErrTransport, ErrNoData))
	}
	status, err := messaging.DecodeStatus(payload)
	if err != nil {
		return fail(fmt.Errorf("%w: %w", ErrFraming, err))
	}
	if status != messaging.StatusSuccess {
		return fail(fmt.Errorf("%w: status %d", ErrRejected, status))
	}
	return nil
}
