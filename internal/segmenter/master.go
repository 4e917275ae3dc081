package segmenter

import (
	"fmt"
	"strings"
)

// StreamInfo carries the attributes of one #EXT-X-STREAM-INF entry.
type StreamInfo struct {
	URI        string
	Bandwidth  int64
	Resolution string
	Codecs     string
}

// RenderMaster renders a master playlist listing streams in order.
// #EXT-X-VERSION is only written for versions above 3.
func RenderMaster(streams []StreamInfo, opts MasterOptions) string {
	var b strings.Builder

	b.WriteString("#EXTM3U\n")
	if opts.HLSVersion >= 4 {
		b.WriteString(fmt.Sprintf("#EXT-X-VERSION:%d\n", opts.HLSVersion))
	}

	for _, stream := range streams {
		bandwidth := stream.Bandwidth
		if bandwidth <= 0 {
			bandwidth = 1
		}
		b.WriteString("\n")
		b.WriteString(fmt.Sprintf("#EXT-X-STREAM-INF:BANDWIDTH=%d", bandwidth))
		if stream.Resolution != "" {
			b.WriteString(",RESOLUTION=" + stream.Resolution)
		}
		if stream.Codecs != "" {
			b.WriteString(fmt.Sprintf(",CODECS=%q", stream.Codecs))
		}
		b.WriteString("\n")
		b.WriteString(stream.URI)
		b.WriteString("\n")
	}

	return b.String()
}
