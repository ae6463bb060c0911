package util

import (
	"errors"
	"net/url"
	"strings"
)

var (
	ErrNoFilename = errors.New("cannot extract valid filename")
)

// Longer "extensions" are almost always part of a name that happens to contain a dot.
const maxExtensionLength = 16

func FilenameFromURL(url *url.URL) (string, error) {
	if url == nil {
		return "", ErrNoFilename
	}
	path := strings.Trim(url.Path, "/")
	if path == "" && url.Opaque != "" {
		path = strings.Trim(url.Opaque, "/")
	}
	if path == "" {
		return "", ErrNoFilename
	}
	pathElements := strings.Split(path, "/")
	filename := pathElements[len(pathElements)-1]
	if filename == "" {
		return "", ErrNoFilename
	}
	// Don't allow "filenames" that are just ".", "..", etc.
	if strings.ReplaceAll(filename, ".", "") == "" {
		return "", ErrNoFilename
	}
	return filename, nil
}

func FilenameFromURLString(s string) (string, error) {
	if parsedURL, err := url.Parse(s); err != nil {
		return "", err
	} else {
		return FilenameFromURL(parsedURL)
	}
}

// SplitExtension splits "name.ext" into ("name", "ext"), lower-casing the extension. A trailing component that does
// not look like an extension is left as part of the name.
func SplitExtension(filename string) (string, string) {
	pos := strings.LastIndexByte(filename, '.')
	if pos <= 0 || pos == len(filename)-1 {
		return filename, ""
	}
	ext := filename[pos+1:]
	if len(ext) > maxExtensionLength {
		return filename, ""
	}
	for _, r := range ext {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return filename, ""
		}
	}
	return filename[:pos], strings.ToLower(ext)
}

// NameExtFromURL returns the (name, extension) pair for the last path element of a URL. Missing parts are returned as
// empty strings rather than an error.
func NameExtFromURL(s string) (string, string) {
	filename, err := FilenameFromURLString(s)
	if err != nil {
		return "", ""
	}
	if unescaped, err := url.PathUnescape(filename); err == nil {
		filename = unescaped
	}
	return SplitExtension(filename)
}
