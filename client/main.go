package main

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"log"
	"math"
	"net/url"
	"os"
	"os/signal"
	"strings"

	"github.com/gorilla/websocket"
)

const (
	MsgTypeJoinRoom  = 101
	MsgTypeMove      = 201
	MsgTypeKick      = 202
	MsgTypeChat      = 204
	MsgTypeRoomState = 301
)

// send formats and sends a message to the WebSocket server.
func send(c *websocket.Conn, msgID uint16, data []byte) error {
	packet := make([]byte, 4+len(data))
	binary.BigEndian.PutUint16(packet[0:2], msgID)
	binary.BigEndian.PutUint16(packet[2:4], uint16(len(data)))
	copy(packet[4:], data)

	return c.WriteMessage(websocket.BinaryMessage, packet)
}

func main() {
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	u := url.URL{Scheme: "ws", Host: "localhost:3000", Path: "/ws"}
	log.Printf("Connecting to %s", u.String())

	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("Dial failed: %v", err)
	}
	defer c.Close()

	join, _ := json.Marshal(map[string]string{
		"nickname": "probe",
		"skin":     "0.png",
		"roomId":   "probe-room",
		"roomName": "Probe Room",
	})
	if err := send(c, MsgTypeJoinRoom, join); err != nil {
		log.Fatalf("Join failed: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, data, err := c.ReadMessage()
			if err != nil {
				log.Printf("Read error: %v", err)
				return
			}
			if len(data) < 4 {
				continue
			}
			msgID := binary.BigEndian.Uint16(data[0:2])
			if msgID == MsgTypeRoomState {
				log.Printf("state: %s", data[4:])
			}
		}
	}()

	// Commands: up/down/left/right, stop, kick, pass, say <text>
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		angles := map[string]float64{
			"right": 0,
			"down":  math.Pi / 2,
			"left":  math.Pi,
			"up":    -math.Pi / 2,
		}
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			switch {
			case line == "stop":
				data, _ := json.Marshal(map[string]interface{}{"angle": nil})
				send(c, MsgTypeMove, data)
			case line == "kick":
				data, _ := json.Marshal(map[string]bool{"isPass": false})
				send(c, MsgTypeKick, data)
			case line == "pass":
				data, _ := json.Marshal(map[string]bool{"isPass": true})
				send(c, MsgTypeKick, data)
			case strings.HasPrefix(line, "say "):
				data, _ := json.Marshal(map[string]string{"text": strings.TrimPrefix(line, "say ")})
				send(c, MsgTypeChat, data)
			default:
				if angle, ok := angles[line]; ok {
					data, _ := json.Marshal(map[string]float64{"angle": angle})
					send(c, MsgTypeMove, data)
				}
			}
		}
	}()

	select {
	case <-done:
	case <-interrupt:
		log.Println("Interrupted, closing connection")
		c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}
}
