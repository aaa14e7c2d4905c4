package datatype

import (
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Type discriminates the metadata object carried with a buffer.
type Type int32

const (
	TypeBuffer Type = iota
	TypeImgFrame
	TypeNNData
	TypeImageManipConfig
	TypeCameraControl
	TypeImgDetections
	TypeSpatialImgDetections
	TypeSystemInformation
	TypeSpatialLocationCalculatorConfig
	TypeSpatialLocationCalculatorData
	TypeEdgeDetectorConfig
	TypeAprilTagConfig
	TypeAprilTags
	TypeTracklets
	TypeIMUData
	TypeStereoDepthConfig
	TypeFeatureTrackerConfig
	TypeTrackedFeatures
)

var typeNames = [...]string{
	"Buffer",
	"ImgFrame",
	"NNData",
	"ImageManipConfig",
	"CameraControl",
	"ImgDetections",
	"SpatialImgDetections",
	"SystemInformation",
	"SpatialLocationCalculatorConfig",
	"SpatialLocationCalculatorData",
	"EdgeDetectorConfig",
	"AprilTagConfig",
	"AprilTags",
	"Tracklets",
	"IMUData",
	"StereoDepthConfig",
	"FeatureTrackerConfig",
	"TrackedFeatures",
}

func (t Type) String() string {
	if t >= 0 && int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("Type(%d)", int32(t))
}

var (
	ErrUnknownType = errors.New("datatype: no decoder for type")
	ErrEmpty       = errors.New("datatype: empty metadata")
)

var decoders = map[Type]func() any{
	TypeBuffer:            func() any { return &Buffer{} },
	TypeImgFrame:          func() any { return &ImgFrame{} },
	TypeNNData:            func() any { return &NNData{} },
	TypeImgDetections:     func() any { return &ImgDetections{} },
	TypeSystemInformation: func() any { return &SystemInformation{} },
}

// Parse decodes msgpack metadata into out.
func Parse(meta []byte, out any) error {
	if len(meta) == 0 {
		return ErrEmpty
	}
	if err := msgpack.Unmarshal(meta, out); err != nil {
		return fmt.Errorf("datatype: decode metadata: %w", err)
	}
	return nil
}

// Decode returns a pointer to the raw object registered for dt.
func Decode(dt Type, meta []byte) (any, error) {
	newObj, ok := decoders[dt]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, dt)
	}
	obj := newObj()
	if err := Parse(meta, obj); err != nil {
		return nil, err
	}
	return obj, nil
}

func marshal(v any, dt Type) ([]byte, Type, error) {
	meta, err := msgpack.Marshal(v)
	if err != nil {
		return nil, dt, fmt.Errorf("datatype: encode %s: %w", dt, err)
	}
	return meta, dt, nil
}
