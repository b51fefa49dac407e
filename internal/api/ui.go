package api

import "net/http"

const uiHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<title>trafficsim</title>
<style>
  body { font-family: monospace; background: #1a1a2e; color: #eee; margin: 0; }
  header { background: #16213e; padding: 10px 20px; display: flex; justify-content: space-between; }
  .controls { padding: 10px 20px; display: flex; gap: 8px; align-items: center; }
  .controls input { background: #1a1a2e; color: #eee; border: 1px solid #0f3460; padding: 4px 8px; width: 120px; }
  .controls button { background: #2563eb; color: #fff; border: none; padding: 5px 12px; cursor: pointer; }
  main { display: flex; gap: 20px; padding: 0 20px; }
  pre { background: #0f172a; padding: 12px; min-width: 460px; }
  #events { flex: 1; height: 70vh; overflow-y: auto; font-size: 12px; }
  .event { border-left: 3px solid #2563eb; padding: 2px 8px; margin: 2px 0; }
  .level-warn { border-left-color: #d97706; }
  .level-error { border-left-color: #dc2626; }
  #status.connected { color: #95d5b2; }
  #status.disconnected { color: #fca5a5; }
</style>
</head>
<body>
<header><span>trafficsim</span><span id="status" class="disconnected">disconnected</span></header>
<div class="controls">
  <button onclick="control('reset')">Reset</button>
  <input id="actions" placeholder="0,0">
  <button onclick="step()">Step</button>
  <span id="result"></span>
</div>
<main>
  <pre id="board"></pre>
  <div id="events"></div>
</main>
<script>
const board = document.getElementById('board');
const eventsDiv = document.getElementById('events');
const statusEl = document.getElementById('status');
const resultEl = document.getElementById('result');

function refresh() {
  fetch('/render').then(r => r.text()).then(t => { board.textContent = t; });
}

function control(op, body) {
  fetch('/control/' + op, {
    method: 'POST',
    headers: { 'Content-Type': 'application/json' },
    body: JSON.stringify(body || {})
  }).then(r => r.json()).then(j => {
    resultEl.textContent = j.ok ? 'ok' : j.error;
    refresh();
  }).catch(err => { resultEl.textContent = err; });
}

function step() {
  const raw = document.getElementById('actions').value;
  const actions = raw.split(',').filter(s => s.trim() !== '').map(Number);
  control('step', { actions: actions });
}

function addEvent(e) {
  const div = document.createElement('div');
  div.className = 'event level-' + e.level;
  div.textContent = e.ts + ' ' + e.event + ' ' + JSON.stringify(e.fields || {});
  eventsDiv.appendChild(div);
  while (eventsDiv.children.length > 500) eventsDiv.removeChild(eventsDiv.firstChild);
  eventsDiv.scrollTop = eventsDiv.scrollHeight;
  if (e.event.startsWith('episode.') || e.event.startsWith('session.')) refresh();
}

function connect() {
  const proto = location.protocol === 'https:' ? 'wss:' : 'ws:';
  const ws = new WebSocket(proto + '//' + location.host + '/ws');
  ws.onopen = () => { statusEl.className = 'connected'; statusEl.textContent = 'connected'; };
  ws.onmessage = msg => { try { addEvent(JSON.parse(msg.data)); } catch (err) { console.error(err); } };
  ws.onclose = () => {
    statusEl.className = 'disconnected';
    statusEl.textContent = 'disconnected';
    setTimeout(connect, 2000);
  };
}

refresh();
connect();
</script>
</body>
</html>
`

func (s *Server) uiHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(uiHTML))
}
