// Command ingest-cli reads pre-chunked textbook excerpts from a JSONL file
// and submits them to a running server in batches. Each line holds one chunk:
//
//	{"source_file":"science_10.pdf","class":10,"subject":"Science","chapter":"Life Processes","text":"...","page":12,"tokens":180}
//
// Chunks are grouped by (source_file, class, subject, chapter) and each group
// is posted to /internal/content/ingest.
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

type chunkLine struct {
	SourceFile string `json:"source_file"`
	Class      int    `json:"class"`
	Subject    string `json:"subject"`
	Chapter    string `json:"chapter"`
	Text       string `json:"text"`
	Page       int    `json:"page"`
	Tokens     int    `json:"tokens"`
}

type groupKey struct {
	SourceFile string
	Class      int
	Subject    string
	Chapter    string
}

type ingestChunk struct {
	Text   string `json:"text"`
	Page   int    `json:"page"`
	Tokens int    `json:"tokens"`
}

type ingestRequest struct {
	SourceFile string        `json:"source_file"`
	Class      int           `json:"class"`
	Subject    string        `json:"subject"`
	Chapter    string        `json:"chapter"`
	Chunks     []ingestChunk `json:"chunks"`
}

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <chunks.jsonl>\n", os.Args[0])
		os.Exit(2)
	}

	serverURL := os.Getenv("SERVER_URL")
	if serverURL == "" {
		serverURL = "http://localhost:8080"
	}

	file, err := os.Open(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open input: %v\n", err)
		os.Exit(1)
	}
	defer file.Close()

	groups := make(map[groupKey][]ingestChunk)
	var order []groupKey

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 1024*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var chunk chunkLine
		if err := json.Unmarshal(line, &chunk); err != nil {
			fmt.Fprintf(os.Stderr, "line %d: invalid JSON: %v\n", lineNo, err)
			os.Exit(1)
		}
		key := groupKey{chunk.SourceFile, chunk.Class, chunk.Subject, chunk.Chapter}
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], ingestChunk{
			Text:   chunk.Text,
			Page:   chunk.Page,
			Tokens: chunk.Tokens,
		})
	}
	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to read input: %v\n", err)
		os.Exit(1)
	}

	client := &http.Client{Timeout: 30 * time.Second}
	succeeded, failed := 0, 0
	for _, key := range order {
		req := ingestRequest{
			SourceFile: key.SourceFile,
			Class:      key.Class,
			Subject:    key.Subject,
			Chapter:    key.Chapter,
			Chunks:     groups[key],
		}
		jobID, err := submit(client, serverURL, req)
		if err != nil {
			fmt.Fprintf(os.Stderr, "ingest failed for %s / %s: %v\n", key.SourceFile, key.Chapter, err)
			failed++
			continue
		}
		fmt.Printf("queued %s / %s (%d chunks) as job %s\n",
			key.SourceFile, key.Chapter, len(req.Chunks), jobID)
		succeeded++
		time.Sleep(100 * time.Millisecond)
	}

	fmt.Printf("done: %d groups queued, %d failed\n", succeeded, failed)
	if failed > 0 {
		os.Exit(1)
	}
}

func submit(client *http.Client, serverURL string, req ingestRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	resp, err := client.Post(serverURL+"/internal/content/ingest", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode != http.StatusAccepted {
		return "", fmt.Errorf("server returned %d: %s", resp.StatusCode, respBody)
	}
	var accepted struct {
		JobID string `json:"job_id"`
	}
	if err := json.Unmarshal(respBody, &accepted); err != nil {
		return "", fmt.Errorf("unexpected response: %s", respBody)
	}
	return accepted.JobID, nil
}
