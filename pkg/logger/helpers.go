package logger

// LogExtraction records the outcome of one extraction run
func LogExtraction(l Logger, platform, pageURL string, found int, err error) {
	fields := map[string]interface{}{
		"platform": platform,
		"url":      pageURL,
		"images":   found,
	}
	if err != nil {
		l.WithError(err).WarnWithFields("Extraction failed", fields)
		return
	}
	if found == 0 {
		l.InfoWithFields("No images found", fields)
		return
	}
	l.InfoWithFields("Extraction completed", fields)
}

// LogDownload records the outcome of a single download task
func LogDownload(l Logger, filename string, attempts int, err error) {
	fields := map[string]interface{}{
		"filename": filename,
		"attempts": attempts,
	}
	if err != nil {
		l.WithError(err).ErrorWithFields("Download failed", fields)
		return
	}
	l.DebugWithFields("Download completed", fields)
}

// LogRequest logs HTTP request information
func LogRequest(l Logger, method, url string, statusCode int, durationMs float64) {
	fields := map[string]interface{}{
		"method":      method,
		"url":         url,
		"status_code": statusCode,
		"duration_ms": durationMs,
	}

	switch {
	case statusCode >= 500:
		l.ErrorWithFields("HTTP request server error", fields)
	case statusCode >= 400:
		l.WarnWithFields("HTTP request client error", fields)
	default:
		l.DebugWithFields("HTTP request completed", fields)
	}
}
