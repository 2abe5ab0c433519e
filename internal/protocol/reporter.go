package protocol

// Reporter opcodes. Each reporter frame is ReporterFrameSize bytes; only
// the first byte is meaningful, the rest is reserved.
const (
	ReporterKeepalive          uint8 = 0x00
	ReporterToggle             uint8 = 0x01
	ReporterPauseEdgeToggling  uint8 = 0x02
	ReporterResumeEdgeToggling uint8 = 0x03
)

const ReporterFrameSize = 16

// ReporterFrame builds a frame carrying op.
func ReporterFrame(op uint8) []byte {
	frame := make([]byte, ReporterFrameSize)
	frame[0] = op
	return frame
}
