package httpx

import (
	"bufio"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// LoadCookieJar parses a Netscape/Mozilla cookies.txt file, the format
// yt-dlp and browser exporters write. Malformed lines are skipped.
func LoadCookieJar(path string) (*cookiejar.Jar, error) {
	f, err := os.Open(strings.TrimSpace(path))
	if err != nil {
		return nil, fmt.Errorf("open cookies file: %w", err)
	}
	defer f.Close()

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	byHost := map[string][]*http.Cookie{}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		c, host, ok := parseCookieLine(scanner.Text())
		if !ok {
			continue
		}
		byHost[host] = append(byHost[host], c)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read cookies file: %w", err)
	}
	for host, cookies := range byHost {
		jar.SetCookies(&url.URL{Scheme: "https", Host: host, Path: "/"}, cookies)
	}
	return jar, nil
}

func parseCookieLine(line string) (*http.Cookie, string, bool) {
	line = strings.TrimRight(line, "\r\n")
	httpOnly := false
	if strings.HasPrefix(line, "#HttpOnly_") {
		line = strings.TrimPrefix(line, "#HttpOnly_")
		httpOnly = true
	}
	if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
		return nil, "", false
	}
	fields := strings.Split(line, "\t")
	if len(fields) < 7 {
		return nil, "", false
	}
	domain := strings.TrimSpace(fields[0])
	host := strings.TrimPrefix(domain, ".")
	if host == "" {
		return nil, "", false
	}
	c := &http.Cookie{
		Name:     fields[5],
		Value:    fields[6],
		Path:     fields[2],
		Secure:   strings.EqualFold(fields[3], "TRUE"),
		HttpOnly: httpOnly,
	}
	if strings.HasPrefix(domain, ".") {
		c.Domain = host
	}
	if exp, err := strconv.ParseInt(fields[4], 10, 64); err == nil && exp > 0 {
		c.Expires = time.Unix(exp, 0)
	}
	return c, host, true
}
