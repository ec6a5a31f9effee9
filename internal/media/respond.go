package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
)

// streamChunkSize bounds how much of a blob is held in memory at once.
const streamChunkSize = 32 * 1024

// WriteRangeNotSatisfiable answers 416 with the framing header clients
// use to learn the real size.
func WriteRangeNotSatisfiable(w http.ResponseWriter, totalSize int64) {
	w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", totalSize))
	w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
}

// WriteContent streams the resolved byte interval from body. The outcome
// must be RangeNone or RangePartial; body must already be positioned at
// the interval's first byte and is read in bounded chunks, so resources
// of any size stream without being loaded into memory.
//
// Streaming stops promptly when ctx is cancelled (client disconnect
// while seeking is the common case); the caller still owns closing body.
func WriteContent(ctx context.Context, w http.ResponseWriter, outcome RangeOutcome, totalSize int64, contentType string, body io.Reader) (int64, error) {
	length := outcome.Length(totalSize)

	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Content-Length", strconv.FormatInt(length, 10))
	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}

	switch outcome.Kind {
	case RangePartial:
		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", outcome.Start, outcome.End, totalSize))
		w.WriteHeader(http.StatusPartialContent)
	case RangeNone:
		w.WriteHeader(http.StatusOK)
	default:
		return 0, fmt.Errorf("unstreamable range outcome %d", outcome.Kind)
	}

	return copyRange(ctx, w, body, length)
}

// copyRange copies exactly n bytes in bounded chunks, checking for
// cancellation between chunks.
func copyRange(ctx context.Context, dst io.Writer, src io.Reader, n int64) (int64, error) {
	buf := make([]byte, streamChunkSize)
	var written int64
	for written < n {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		chunk := int64(len(buf))
		if remaining := n - written; remaining < chunk {
			chunk = remaining
		}
		nr, rerr := src.Read(buf[:chunk])
		if nr > 0 {
			nw, werr := dst.Write(buf[:nr])
			written += int64(nw)
			if werr != nil {
				return written, werr
			}
			if nw < nr {
				return written, io.ErrShortWrite
			}
		}
		if rerr != nil {
			if errors.Is(rerr, io.EOF) && written == n {
				break
			}
			return written, rerr
		}
	}
	return written, nil
}
