package datatype

// Timestamp is a monotonic device timestamp.
type Timestamp struct {
	Sec  int64 `msgpack:"sec" json:"sec"`
	Nsec int64 `msgpack:"nsec" json:"nsec"`
}

// Buffer is the base object: opaque payload, no typed metadata.
type Buffer struct {
	Data []byte `msgpack:"-" json:"-"`
}

func (b *Buffer) Payload() []byte { return b.Data }

func (b *Buffer) SerializeMetadata() ([]byte, Type, error) {
	return marshal(b, TypeBuffer)
}

// FrameSpecs describes the pixel layout of an ImgFrame.
type FrameSpecs struct {
	Type     int32  `msgpack:"type" json:"type"`
	Width    uint32 `msgpack:"width" json:"width"`
	Height   uint32 `msgpack:"height" json:"height"`
	Stride   uint32 `msgpack:"stride" json:"stride"`
	BytesPP  uint32 `msgpack:"bytesPP" json:"bytes_pp"`
	P1Offset uint32 `msgpack:"p1Offset" json:"p1_offset"`
	P2Offset uint32 `msgpack:"p2Offset" json:"p2_offset"`
	P3Offset uint32 `msgpack:"p3Offset" json:"p3_offset"`
}

type ImgFrame struct {
	Data        []byte     `msgpack:"-" json:"-"`
	Fb          FrameSpecs `msgpack:"fb" json:"fb"`
	Category    uint32     `msgpack:"category" json:"category"`
	InstanceNum uint32     `msgpack:"instanceNum" json:"instance_num"`
	SequenceNum int64      `msgpack:"sequenceNum" json:"sequence_num"`
	Ts          Timestamp  `msgpack:"ts" json:"ts"`
	TsDevice    Timestamp  `msgpack:"tsDevice" json:"ts_device"`
}

func (f *ImgFrame) Payload() []byte { return f.Data }

func (f *ImgFrame) SerializeMetadata() ([]byte, Type, error) {
	return marshal(f, TypeImgFrame)
}

// TensorInfo locates one output tensor within an NNData payload.
type TensorInfo struct {
	Name     string   `msgpack:"name" json:"name"`
	DataType int32    `msgpack:"dataType" json:"data_type"`
	Dims     []uint32 `msgpack:"dims" json:"dims"`
	Offset   uint32   `msgpack:"offset" json:"offset"`
}

type NNData struct {
	Data        []byte       `msgpack:"-" json:"-"`
	Tensors     []TensorInfo `msgpack:"tensors" json:"tensors"`
	BatchSize   uint32       `msgpack:"batchSize" json:"batch_size"`
	SequenceNum int64        `msgpack:"sequenceNum" json:"sequence_num"`
	Ts          Timestamp    `msgpack:"ts" json:"ts"`
	TsDevice    Timestamp    `msgpack:"tsDevice" json:"ts_device"`
}

func (n *NNData) Payload() []byte { return n.Data }

func (n *NNData) SerializeMetadata() ([]byte, Type, error) {
	return marshal(n, TypeNNData)
}

// ImgDetection is one normalized bounding box.
type ImgDetection struct {
	Label      uint32  `msgpack:"label" json:"label"`
	Confidence float32 `msgpack:"confidence" json:"confidence"`
	XMin       float32 `msgpack:"xmin" json:"xmin"`
	YMin       float32 `msgpack:"ymin" json:"ymin"`
	XMax       float32 `msgpack:"xmax" json:"xmax"`
	YMax       float32 `msgpack:"ymax" json:"ymax"`
}

type ImgDetections struct {
	Data        []byte         `msgpack:"-" json:"-"`
	Detections  []ImgDetection `msgpack:"detections" json:"detections"`
	SequenceNum int64          `msgpack:"sequenceNum" json:"sequence_num"`
	Ts          Timestamp      `msgpack:"ts" json:"ts"`
	TsDevice    Timestamp      `msgpack:"tsDevice" json:"ts_device"`
}

func (d *ImgDetections) Payload() []byte { return d.Data }

func (d *ImgDetections) SerializeMetadata() ([]byte, Type, error) {
	return marshal(d, TypeImgDetections)
}

// MemoryInfo reports heap usage in bytes.
type MemoryInfo struct {
	Remaining int64 `msgpack:"remaining" json:"remaining"`
	Used      int64 `msgpack:"used" json:"used"`
	Total     int64 `msgpack:"total" json:"total"`
}

type SystemInformation struct {
	Data            []byte     `msgpack:"-" json:"-"`
	DdrMemoryUsage  MemoryInfo `msgpack:"ddrMemoryUsage" json:"ddr_memory_usage"`
	CmxMemoryUsage  MemoryInfo `msgpack:"cmxMemoryUsage" json:"cmx_memory_usage"`
	ChipTemperature float32    `msgpack:"chipTemperature" json:"chip_temperature"`
	CPUUsage        float32    `msgpack:"cpuUsage" json:"cpu_usage"`
}

func (s *SystemInformation) Payload() []byte { return s.Data }

func (s *SystemInformation) SerializeMetadata() ([]byte, Type, error) {
	return marshal(s, TypeSystemInformation)
}
