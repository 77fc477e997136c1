package websocket

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestHub() *Hub {
	return NewHub(zap.NewNop())
}

func TestNotifyGameNoSubscribers(t *testing.T) {
	hub := newTestHub()

	// 没有订阅者不是错误，送达数为0
	sent := hub.NotifyGame("game-1", MessageTypeGameUpdate, map[string]int{"turn": 1})
	assert.Equal(t, 0, sent)
}

func TestNotifyGameDelivers(t *testing.T) {
	hub := newTestHub()
	client := NewClient(hub, nil, "", -1)
	hub.registerClient(client)
	hub.subscribe(client, "game-1")

	sent := hub.NotifyGame("game-1", MessageTypeGameUpdate, map[string]int{"turn": 3})
	assert.Equal(t, 1, sent)

	raw := <-client.Send
	var msg Message
	require.NoError(t, json.Unmarshal(raw, &msg))
	assert.Equal(t, MessageTypeGameUpdate, msg.Type)
	assert.Equal(t, "game-1", msg.GameID)
	assert.NotZero(t, msg.Timestamp)

	var payload map[string]int
	require.NoError(t, json.Unmarshal(msg.Data, &payload))
	assert.Equal(t, 3, payload["turn"])
}

func TestNotifyGameOnlyReachesSubscribers(t *testing.T) {
	hub := newTestHub()
	subscriber := NewClient(hub, nil, "", -1)
	bystander := NewClient(hub, nil, "", -1)
	hub.registerClient(subscriber)
	hub.registerClient(bystander)
	hub.subscribe(subscriber, "game-1")
	hub.subscribe(bystander, "game-2")

	sent := hub.NotifyGame("game-1", MessageTypeGameStarted, nil)
	assert.Equal(t, 1, sent)
	assert.Len(t, subscriber.Send, 1)
	assert.Len(t, bystander.Send, 0)
}

func TestNotifyGameSkipsFullBuffer(t *testing.T) {
	hub := newTestHub()
	client := NewClient(hub, nil, "", -1)
	hub.registerClient(client)
	hub.subscribe(client, "game-1")

	// 塞满发送缓冲区
	for i := 0; i < cap(client.Send); i++ {
		client.Send <- []byte("x")
	}

	sent := hub.NotifyGame("game-1", MessageTypeGameUpdate, nil)
	assert.Equal(t, 0, sent, "缓冲区满的客户端跳过不阻塞")
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	hub := newTestHub()
	client := NewClient(hub, nil, "", -1)
	hub.registerClient(client)
	hub.subscribe(client, "game-1")
	require.Equal(t, 1, hub.SubscriberCount("game-1"))

	hub.unsubscribe(client, "game-1")
	assert.Equal(t, 0, hub.SubscriberCount("game-1"))
	assert.Equal(t, 0, hub.NotifyGame("game-1", MessageTypeGameUpdate, nil))
}

func TestUnregisterCleansSubscriptions(t *testing.T) {
	hub := newTestHub()
	client := NewClient(hub, nil, "", -1)
	hub.registerClient(client)
	hub.subscribe(client, "game-1")
	hub.subscribe(client, "game-2")

	hub.unregisterClient(client)

	assert.Equal(t, 0, hub.SubscriberCount("game-1"))
	assert.Equal(t, 0, hub.SubscriberCount("game-2"))
	assert.Equal(t, 0, hub.GetOnlineCount())

	// 通道已关闭
	_, open := <-client.Send
	assert.False(t, open)
}

func TestUnsubscribeWithoutGameIDDropsAll(t *testing.T) {
	hub := newTestHub()
	client := NewClient(hub, nil, "", -1)
	hub.registerClient(client)
	hub.subscribe(client, "game-1")
	hub.subscribe(client, "game-2")

	client.handleMessage([]byte(`{"type":"unsubscribe"}`))

	assert.Equal(t, 0, hub.SubscriberCount("game-1"))
	assert.Equal(t, 0, hub.SubscriberCount("game-2"))
	assert.Empty(t, client.subscribedGames())
	assert.Len(t, client.Send, 2, "每个被解除的对局各回执一条")
}

func TestNotifyGameDuringUnregister(t *testing.T) {
	hub := newTestHub()
	other := NewClient(hub, nil, "", -1)
	hub.registerClient(other)
	hub.subscribe(other, "game-1")

	// 扇出与注销并发进行：关闭通道不得打断对其余订阅者的推送
	require.NotPanics(t, func() {
		for i := 0; i < 200; i++ {
			client := NewClient(hub, nil, "", -1)
			hub.registerClient(client)
			hub.subscribe(client, "game-1")

			var wg sync.WaitGroup
			wg.Add(2)
			go func() {
				defer wg.Done()
				hub.NotifyGame("game-1", MessageTypeGameUpdate, nil)
			}()
			go func() {
				defer wg.Done()
				hub.unregisterClient(client)
			}()
			wg.Wait()

			// 腾空幸存订阅者的缓冲区，避免后续轮次被满缓冲跳过
			for len(other.Send) > 0 {
				<-other.Send
			}
		}
	})

	assert.Equal(t, 1, hub.SubscriberCount("game-1"))
	assert.Equal(t, 1, hub.GetOnlineCount())
}

func TestUnregisterInvokesDisconnectHook(t *testing.T) {
	hub := newTestHub()

	var gotGame string
	gotSlot := -99
	hub.SetDisconnectHook(func(gameID string, playerSlot int) {
		gotGame = gameID
		gotSlot = playerSlot
	})

	// 身份绑定的连接触发回调
	bound := NewClient(hub, nil, "game-1", 2)
	hub.registerClient(bound)
	hub.unregisterClient(bound)
	assert.Equal(t, "game-1", gotGame)
	assert.Equal(t, 2, gotSlot)

	// 匿名观战连接不触发
	gotGame, gotSlot = "", -99
	anon := NewClient(hub, nil, "", -1)
	hub.registerClient(anon)
	hub.unregisterClient(anon)
	assert.Equal(t, "", gotGame)
	assert.Equal(t, -99, gotSlot)
}

func TestUnregisterUnknownClientIsNoop(t *testing.T) {
	hub := newTestHub()
	client := NewClient(hub, nil, "", -1)

	assert.NotPanics(t, func() { hub.unregisterClient(client) })
}
