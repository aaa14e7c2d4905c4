package messaging

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/danmuck/spilink/internal/protocol/packet"
)

// Command is the operation code carried by an outgoing command packet.
type Command uint32

const (
	GetStatus Command = iota
	GetStreams
	GetSize
	GetMetaSize
	GetMessage
	GetMetadata
	GetMessagePart
	PopMessage
	PopMessages
)

const (
	commandHeaderLen = 8

	// MaxArgumentLen is the command argument capacity of one packet.
	MaxArgumentLen = packet.PayloadMaxSize - commandHeaderLen
)

var (
	ErrArgumentTooLong = errors.New("messaging: command argument too long")
	ErrShortCommand    = errors.New("messaging: short command payload")
	ErrUnknownCommand  = errors.New("messaging: unknown command")
)

var commandNames = map[Command]string{
	GetStatus:      "GET_STATUS",
	GetStreams:     "GET_STREAMS",
	GetSize:        "GET_SIZE",
	GetMetaSize:    "GET_METASIZE",
	GetMessage:     "GET_MESSAGE",
	GetMetadata:    "GET_METADATA",
	GetMessagePart: "GET_MESSAGE_PART",
	PopMessage:     "POP_MESSAGE",
	PopMessages:    "POP_MESSAGES",
}

func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Command(%d)", uint32(c))
}

func (c Command) Valid() bool {
	_, ok := commandNames[c]
	return ok
}

// IsSizeCommand reports whether c answers with a single 32-bit size.
func IsSizeCommand(c Command) bool {
	return c == GetSize || c == GetMetaSize
}

// IsMessageCommand reports whether c answers with a multi-packet body.
func IsMessageCommand(c Command) bool {
	return c == GetMessage || c == GetMetadata || c == GetMessagePart
}

// StreamArgument is the NUL-terminated stream name argument. An empty name
// yields the single NUL sent by stream-less commands.
func StreamArgument(stream string) []byte {
	arg := make([]byte, len(stream)+1)
	copy(arg, stream)
	return arg
}

// PartArgument encodes the GET_MESSAGE_PART argument.
func PartArgument(stream string, offset, size uint32) []byte {
	arg := StreamArgument(stream)
	var tail [8]byte
	binary.LittleEndian.PutUint32(tail[0:4], offset)
	binary.LittleEndian.PutUint32(tail[4:8], size)
	return append(arg, tail[:]...)
}

// EncodeCommand builds the complete outgoing packet for cmd.
func EncodeCommand(cmd Command, arg []byte) (packet.Packet, error) {
	if len(arg) > MaxArgumentLen {
		return packet.Packet{}, fmt.Errorf("%w: %d > %d", ErrArgumentTooLong, len(arg), MaxArgumentLen)
	}
	buf := make([]byte, commandHeaderLen+len(arg))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(cmd))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(len(arg)))
	copy(buf[commandHeaderLen:], arg)
	return packet.Encode(buf)
}

// CommandRequest is a decoded command payload, as seen by the peer.
type CommandRequest struct {
	Command  Command
	Argument []byte
}

// Stream returns the argument up to its first NUL.
func (r CommandRequest) Stream() string {
	for i, b := range r.Argument {
		if b == 0 {
			return string(r.Argument[:i])
		}
	}
	return string(r.Argument)
}

// Part returns the offset and size of a GET_MESSAGE_PART argument.
func (r CommandRequest) Part() (offset, size uint32, err error) {
	name := r.Stream()
	tail := r.Argument[min(len(name)+1, len(r.Argument)):]
	if len(tail) < 8 {
		return 0, 0, ErrShortCommand
	}
	return binary.LittleEndian.Uint32(tail[0:4]), binary.LittleEndian.Uint32(tail[4:8]), nil
}

// DecodeCommand parses a command packet payload.
func DecodeCommand(payload []byte) (CommandRequest, error) {
	if len(payload) < commandHeaderLen {
		return CommandRequest{}, ErrShortCommand
	}
	cmd := Command(binary.LittleEndian.Uint32(payload[0:4]))
	if !cmd.Valid() {
		return CommandRequest{}, fmt.Errorf("%w: %d", ErrUnknownCommand, uint32(cmd))
	}
	n := binary.LittleEndian.Uint32(payload[4:8])
	if uint64(n) > uint64(len(payload)-commandHeaderLen) {
		return CommandRequest{}, ErrShortCommand
	}
	arg := make([]byte, n)
	copy(arg, payload[commandHeaderLen:commandHeaderLen+int(n)])
	return CommandRequest{Command: cmd, Argument: arg}, nil
}
