package communication

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{}

// echoHandler 将收到的文本帧原样返回，并记录User-Agent
func echoHandler(t *testing.T, userAgent chan<- string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if userAgent != nil {
			userAgent <- r.Header.Get("User-Agent")
		}
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		defer ws.Close()
		// 先发一帧二进制，客户端应跳过
		ws.WriteMessage(websocket.BinaryMessage, []byte{1, 2, 3})
		for {
			kind, data, err := ws.ReadMessage()
			if err != nil {
				return
			}
			ws.WriteMessage(kind, data)
		}
	}
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestWebsocketDialer_RoundTrip(t *testing.T) {
	ua := make(chan string, 1)
	srv := httptest.NewServer(echoHandler(t, ua))
	defer srv.Close()

	d, err := NewWebsocketDialer(DialConfig{Endpoint: wsURL(srv), HandshakeTimeout: time.Second, WriteTimeout: time.Second})
	if err != nil {
		t.Fatal(err)
	}
	conn, err := d.Dial(context.Background())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	if got := <-ua; !strings.HasPrefix(got, "NodeAgent/") {
		t.Errorf("Unexpected User-Agent %q", got)
	}
	if err := conn.WriteFrame([]byte(`{"hello":1}`)); err != nil {
		t.Fatalf("WriteFrame failed: %v", err)
	}
	if err := conn.Ping(); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
	data, err := conn.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}
	if string(data) != `{"hello":1}` {
		t.Errorf("Unexpected frame %q", data)
	}
}

func TestConn_CloseIdempotent(t *testing.T) {
	srv := httptest.NewServer(echoHandler(t, nil))
	defer srv.Close()

	d, _ := NewWebsocketDialer(DialConfig{Endpoint: wsURL(srv), HandshakeTimeout: time.Second})
	conn, err := d.Dial(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	conn.Close()
	conn.Close()
	if _, err := conn.ReadFrame(); err == nil {
		t.Error("Read after close should fail")
	}
	if err := conn.WriteFrame([]byte("x")); err == nil {
		t.Error("Write after close should fail")
	}
}

func TestConn_ReadTimeoutWithoutPong(t *testing.T) {
	// 服务端不读取也不回复pong
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		time.Sleep(time.Second)
		ws.Close()
	}))
	defer srv.Close()

	d, _ := NewWebsocketDialer(DialConfig{
		Endpoint:         wsURL(srv),
		HandshakeTimeout: time.Second,
		PingInterval:     100 * time.Millisecond,
		PongTimeout:      100 * time.Millisecond,
	})
	conn, err := d.Dial(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	start := time.Now()
	if _, err := conn.ReadFrame(); err == nil {
		t.Fatal("Expected read timeout")
	}
	if elapsed := time.Since(start); elapsed > 900*time.Millisecond {
		t.Errorf("Read deadline not applied, took %v", elapsed)
	}
}

func TestWebsocketDialer_Errors(t *testing.T) {
	if _, err := NewWebsocketDialer(DialConfig{Endpoint: "ws://x", Proxy: "http://proxy:3128"}); err == nil {
		t.Error("Non socks5 proxy should be rejected")
	}

	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	d, _ := NewWebsocketDialer(DialConfig{Endpoint: wsURL(srv), HandshakeTimeout: time.Second})
	if _, err := d.Dial(context.Background()); err == nil || !strings.Contains(err.Error(), "404") {
		t.Errorf("Expected handshake failure with status, got %v", err)
	}

	d, _ = NewWebsocketDialer(DialConfig{Endpoint: "ws://127.0.0.1:1/ws", HandshakeTimeout: time.Second})
	if _, err := d.Dial(context.Background()); err == nil {
		t.Error("Expected dial failure")
	}
}
