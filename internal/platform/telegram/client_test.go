package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/yndnr/tokdrop-go/internal/core/domain"
)

const testToken = "123456789:AAHdqTcvCH1vGWJxfSeofSAs0K5PALDsaw"

// botAPI is a fake Bot API server that records every request.
type botAPI struct {
	mu       sync.Mutex
	requests []recorded
	handlers map[string]func(w http.ResponseWriter, r *http.Request)
}

type recorded struct {
	Method string
	Form   map[string]string
	Files  map[string]uploaded
}

type uploaded struct {
	Name string
	Body string
}

func newBotAPI(t *testing.T) (*botAPI, *Client) {
	t.Helper()

	api := &botAPI{handlers: map[string]func(http.ResponseWriter, *http.Request){}}
	srv := httptest.NewServer(http.HandlerFunc(api.serve))
	t.Cleanup(srv.Close)

	client, err := NewClient(ClientConfig{Token: testToken, APIURL: srv.URL, RateLimit: 1000})
	if err != nil {
		t.Fatal(err)
	}
	return api, client
}

func (a *botAPI) handle(method string, h func(w http.ResponseWriter, r *http.Request)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.handlers[method] = h
}

func (a *botAPI) serve(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, "/file/bot"+testToken+"/") {
		a.dispatch("download", w, r)
		return
	}

	method := strings.TrimPrefix(r.URL.Path, "/bot"+testToken+"/")
	if method == r.URL.Path {
		http.NotFound(w, r)
		return
	}

	rec := recorded{Method: method, Form: map[string]string{}, Files: map[string]uploaded{}}
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		if err := r.ParseMultipartForm(1 << 20); err == nil {
			for k, v := range r.MultipartForm.Value {
				rec.Form[k] = v[0]
			}
			for k, fhs := range r.MultipartForm.File {
				f, _ := fhs[0].Open()
				body, _ := io.ReadAll(f)
				f.Close()
				rec.Files[k] = uploaded{Name: fhs[0].Filename, Body: string(body)}
			}
		}
	} else if err := r.ParseForm(); err == nil {
		for k, v := range r.PostForm {
			rec.Form[k] = v[0]
		}
	}

	a.mu.Lock()
	a.requests = append(a.requests, rec)
	a.mu.Unlock()

	a.dispatch(method, w, r)
}

func (a *botAPI) dispatch(method string, w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	h, ok := a.handlers[method]
	a.mu.Unlock()
	if !ok {
		if strings.HasPrefix(method, "send") {
			writeResult(w, Message{MessageID: 1})
			return
		}
		writeResult(w, true)
		return
	}
	h(w, r)
}

func (a *botAPI) last() recorded {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.requests[len(a.requests)-1]
}

func writeResult(w http.ResponseWriter, result any) {
	raw, _ := json.Marshal(result)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"ok": true, "result": json.RawMessage(raw)})
}

func writeError(w http.ResponseWriter, status int, description string, retryAfter int) {
	body := map[string]any{"ok": false, "error_code": status, "description": description}
	if retryAfter > 0 {
		body["parameters"] = map[string]any{"retry_after": retryAfter}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func TestNewClient_RequiresToken(t *testing.T) {
	if _, err := NewClient(ClientConfig{}); err == nil {
		t.Fatal("expected error for empty token")
	}
}

func TestClient_GetMe(t *testing.T) {
	api, client := newBotAPI(t)
	api.handle("getMe", func(w http.ResponseWriter, r *http.Request) {
		writeResult(w, User{ID: 42, IsBot: true, FirstName: "Drop", Username: "dropbot"})
	})

	user, err := client.GetMe(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if user.ID != 42 || user.Username != "dropbot" || !user.IsBot {
		t.Errorf("GetMe = %+v", user)
	}
}

func TestClient_GetUpdates(t *testing.T) {
	api, client := newBotAPI(t)
	api.handle("getUpdates", func(w http.ResponseWriter, r *http.Request) {
		writeResult(w, []Update{
			{UpdateID: 10, Message: &Message{MessageID: 1, Chat: Chat{ID: 5}, Text: "/start"}},
			{UpdateID: 11, Message: &Message{MessageID: 2, Chat: Chat{ID: 5}, Text: "/buy"}},
		})
	})

	updates, err := client.GetUpdates(context.Background(), 10, 30*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if len(updates) != 2 || updates[1].Message.Text != "/buy" {
		t.Fatalf("GetUpdates = %+v", updates)
	}

	req := api.last()
	if req.Form["offset"] != "10" || req.Form["timeout"] != "30" {
		t.Errorf("form = %v", req.Form)
	}
	if req.Form["allowed_updates"] != `["message"]` {
		t.Errorf("allowed_updates = %q", req.Form["allowed_updates"])
	}
}

func TestClient_SendMessage(t *testing.T) {
	api, client := newBotAPI(t)
	api.handle("sendMessage", func(w http.ResponseWriter, r *http.Request) {
		writeResult(w, Message{MessageID: 77, Chat: Chat{ID: 5}})
	})

	msg, err := client.SendMessage(context.Background(), 5, "✅ File saved under token: `Z1`", "Markdown")
	if err != nil {
		t.Fatal(err)
	}
	if msg.MessageID != 77 {
		t.Errorf("MessageID = %d, want 77", msg.MessageID)
	}

	req := api.last()
	if req.Form["chat_id"] != "5" || req.Form["parse_mode"] != "Markdown" {
		t.Errorf("form = %v", req.Form)
	}
	if req.Form["text"] != "✅ File saved under token: `Z1`" {
		t.Errorf("text = %q", req.Form["text"])
	}
}

func TestClient_SendMedia(t *testing.T) {
	api, client := newBotAPI(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		send   func(context.Context, int64, string, io.Reader) (*Message, error)
		method string
		field  string
	}{
		{"document", client.SendDocument, "sendDocument", "document"},
		{"photo", client.SendPhoto, "sendPhoto", "photo"},
		{"video", client.SendVideo, "sendVideo", "video"},
		{"animation", client.SendAnimation, "sendAnimation", "animation"},
		{"audio", client.SendAudio, "sendAudio", "audio"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := tt.send(ctx, 9, "file.bin", strings.NewReader("payload-"+tt.name))
			if err != nil {
				t.Fatal(err)
			}
			if msg == nil {
				t.Fatal("nil message")
			}

			req := api.last()
			if req.Method != tt.method {
				t.Errorf("method = %s, want %s", req.Method, tt.method)
			}
			if req.Form["chat_id"] != "9" {
				t.Errorf("chat_id = %q", req.Form["chat_id"])
			}
			f, ok := req.Files[tt.field]
			if !ok {
				t.Fatalf("no %s part in upload", tt.field)
			}
			if f.Name != "file.bin" || f.Body != "payload-"+tt.name {
				t.Errorf("upload = %+v", f)
			}
		})
	}
}

func TestClient_APIError(t *testing.T) {
	api, client := newBotAPI(t)
	api.handle("sendMessage", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusTooManyRequests, "Too Many Requests: retry after 3", 3)
	})
	api.handle("deleteMessage", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusBadRequest, "Bad Request: message to delete not found", 0)
	})

	_, err := client.SendMessage(context.Background(), 5, "hi", "")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.Code != 429 || apiErr.RetryAfter != 3*time.Second || apiErr.Method != "sendMessage" {
		t.Errorf("APIError = %+v", apiErr)
	}

	err = client.DeleteMessage(context.Background(), 5, 1)
	if !IsAPIError(err, http.StatusBadRequest) {
		t.Errorf("DeleteMessage err = %v, want 400 APIError", err)
	}
}

func TestClient_NonJSONResponse(t *testing.T) {
	api, client := newBotAPI(t)
	api.handle("getMe", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	})

	_, err := client.GetMe(context.Background())
	if err == nil || !strings.Contains(err.Error(), "502") {
		t.Errorf("err = %v, want mention of 502", err)
	}
}

func TestClient_GetFileAndDownload(t *testing.T) {
	api, client := newBotAPI(t)
	api.handle("getFile", func(w http.ResponseWriter, r *http.Request) {
		writeResult(w, File{FileID: "F1", FileUniqueID: "U1", FilePath: "documents/file_3.pdf"})
	})
	api.handle("download", func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/documents/file_3.pdf") {
			http.NotFound(w, r)
			return
		}
		io.WriteString(w, "%PDF-1.7")
	})

	ctx := context.Background()
	f, err := client.GetFile(ctx, "F1")
	if err != nil {
		t.Fatal(err)
	}

	rc, err := client.Download(ctx, f.FilePath)
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()
	body, _ := io.ReadAll(rc)
	if string(body) != "%PDF-1.7" {
		t.Errorf("body = %q", body)
	}

	if _, err := client.Download(ctx, "missing"); !IsAPIError(err, http.StatusNotFound) {
		t.Errorf("Download(missing) err = %v, want 404", err)
	}
}

func TestClient_TransportErrorHidesToken(t *testing.T) {
	client, err := NewClient(ClientConfig{Token: testToken, APIURL: "http://127.0.0.1:1"})
	if err != nil {
		t.Fatal(err)
	}

	_, err = client.GetMe(context.Background())
	if err == nil {
		t.Fatal("expected transport error")
	}
	if strings.Contains(err.Error(), testToken) {
		t.Errorf("error leaks token: %v", err)
	}
}

func TestMessenger_SendFileByKind(t *testing.T) {
	api, client := newBotAPI(t)
	m := NewMessenger(client)
	ctx := context.Background()

	tests := []struct {
		kind   domain.FileKind
		method string
	}{
		{domain.FileKindDocument, "sendDocument"},
		{domain.FileKindPhoto, "sendPhoto"},
		{domain.FileKindVideo, "sendVideo"},
		{domain.FileKindAnimation, "sendAnimation"},
		{domain.FileKindAudio, "sendAudio"},
	}

	for i, tt := range tests {
		id := int64(100 + i)
		api.handle(tt.method, func(w http.ResponseWriter, r *http.Request) {
			writeResult(w, Message{MessageID: id})
		})

		got, err := m.SendFile(ctx, 3, tt.kind, "x", strings.NewReader("x"))
		if err != nil {
			t.Fatalf("%s: %v", tt.kind, err)
		}
		if got != id {
			t.Errorf("%s: message id = %d, want %d", tt.kind, got, id)
		}
		if api.last().Method != tt.method {
			t.Errorf("%s: method = %s, want %s", tt.kind, api.last().Method, tt.method)
		}
	}
}

func TestMessenger_SendTextAndDelete(t *testing.T) {
	api, client := newBotAPI(t)
	api.handle("sendMessage", func(w http.ResponseWriter, r *http.Request) {
		writeResult(w, Message{MessageID: 55})
	})
	m := NewMessenger(client)
	ctx := context.Background()

	id, err := m.SendText(ctx, 3, "hello")
	if err != nil || id != 55 {
		t.Fatalf("SendText = %d, %v", id, err)
	}
	if _, ok := api.last().Form["parse_mode"]; ok {
		t.Error("plain text should not set parse_mode")
	}

	if err := m.DeleteMessage(ctx, 3, 55); err != nil {
		t.Fatal(err)
	}
	req := api.last()
	if req.Method != "deleteMessage" || req.Form["message_id"] != "55" {
		t.Errorf("delete request = %+v", req)
	}
}

func TestMessage_Attachment(t *testing.T) {
	tests := []struct {
		name     string
		msg      Message
		wantOK   bool
		wantKind domain.FileKind
		wantID   string
		wantName string
	}{
		{"text only", Message{Text: "hi"}, false, "", "", ""},
		{"document", Message{Document: &FileMeta{FileID: "D", FileUniqueID: "d", FileName: "a.pdf"}}, true, domain.FileKindDocument, "D", "a.pdf"},
		{"gif carries document too", Message{
			Animation: &FileMeta{FileID: "A", FileUniqueID: "a"},
			Document:  &FileMeta{FileID: "D", FileUniqueID: "d"},
		}, true, domain.FileKindAnimation, "A", ""},
		{"video", Message{Video: &FileMeta{FileID: "V", FileUniqueID: "v", FileName: "clip.mp4"}}, true, domain.FileKindVideo, "V", "clip.mp4"},
		{"audio", Message{Audio: &FileMeta{FileID: "S", FileUniqueID: "s"}}, true, domain.FileKindAudio, "S", ""},
		{"largest photo", Message{Photo: []PhotoSize{
			{FileID: "small", Width: 90, Height: 90},
			{FileID: "large", Width: 1280, Height: 720},
			{FileID: "medium", Width: 320, Height: 180},
		}}, true, domain.FileKindPhoto, "large", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			att, ok := tt.msg.Attachment()
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if att.Kind != tt.wantKind || att.FileID != tt.wantID || att.Name != tt.wantName {
				t.Errorf("Attachment = %+v", att)
			}
		})
	}
}
