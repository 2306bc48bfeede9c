package server

import (
	"fmt"
	"net/http"
)

// handleIndex serves a minimal viewer: a year slider, play toggle and an SVG
// fed by the frame stream. Dragging a node pins it through the API.
func handleIndex() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, indexHTML)
	}
}

const indexHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>pubmap</title>
  <style>
    body { font-family: 'Helvetica Neue', Arial, sans-serif; margin: 0; padding: 20px; background: #f5f5f5; color: #333; }
    .container { max-width: 1000px; margin: 0 auto; background: white; padding: 20px; border-radius: 8px; box-shadow: 0 2px 10px rgba(0,0,0,0.1); }
    .controls { display: flex; gap: 12px; align-items: center; margin-bottom: 10px; }
    input[type=range] { flex: 1; }
    svg { width: 100%; border: 1px solid #eee; }
    circle { cursor: grab; }
    .btn { background: #4285f4; color: white; border: none; padding: 6px 14px; border-radius: 4px; cursor: pointer; }
  </style>
</head>
<body>
  <div class="container">
    <div class="controls">
      <button id="play" class="btn">Pause</button>
      <input id="year" type="range" step="1">
      <span id="label"></span>
    </div>
    <svg id="map"><g id="links"></g><g id="nodes"></g><g id="labels"></g></svg>
  </div>
<script>
const NS = "http://www.w3.org/2000/svg";
const svg = document.getElementById("map");
const slider = document.getElementById("year");
const label = document.getElementById("label");
const play = document.getElementById("play");
let playing = true, dragging = null;

function post(path, body) {
  return fetch(path, {method: "POST", headers: {"Content-Type": "application/json"}, body: JSON.stringify(body)});
}

fetch("/api/summary").then(r => r.json()).then(s => {
  slider.min = s.year[0]; slider.max = s.year[1];
});
fetch("/api/status").then(r => r.json()).then(s => {
  playing = s.playing; play.textContent = playing ? "Pause" : "Play";
});

slider.addEventListener("change", () => post("/api/year", {year: +slider.value}));
play.addEventListener("click", () => {
  playing = !playing;
  play.textContent = playing ? "Pause" : "Play";
  post("/api/play", {playing});
});

function point(evt) {
  const p = svg.createSVGPoint();
  p.x = evt.clientX; p.y = evt.clientY;
  return p.matrixTransform(svg.getScreenCTM().inverse());
}
svg.addEventListener("pointermove", evt => {
  if (dragging) { const p = point(evt); post("/api/move", {id: dragging, x: p.x, y: p.y}); }
});
svg.addEventListener("pointerup", () => {
  if (dragging) { post("/api/unpin", {id: dragging}); dragging = null; }
});

function sync(group, tag, items, key, apply) {
  const seen = new Set();
  for (const it of items) {
    const id = key(it);
    seen.add(id);
    let el = group.querySelector('[data-id="' + id + '"]');
    if (!el) {
      el = document.createElementNS(NS, tag);
      el.dataset.id = id;
      group.appendChild(el);
    }
    apply(el, it);
  }
  for (const el of [...group.children]) if (!seen.has(el.dataset.id)) el.remove();
}

new EventSource("/api/stream").addEventListener("frame", evt => {
  const f = JSON.parse(evt.data);
  svg.setAttribute("viewBox", "0 0 " + f.width + " " + f.height);
  label.textContent = f.year || "";
  if (f.year) slider.value = f.year;
  sync(document.getElementById("links"), "line", f.edges, e => e.id, (el, e) => {
    el.setAttribute("x1", e.x1); el.setAttribute("y1", e.y1);
    el.setAttribute("x2", e.x2); el.setAttribute("y2", e.y2);
    el.setAttribute("stroke", "#999"); el.setAttribute("stroke-opacity", e.visible ? 0.6 : 0);
    el.setAttribute("stroke-width", e.strokeWidth);
  });
  sync(document.getElementById("nodes"), "circle", f.nodes, n => n.id, (el, n) => {
    el.setAttribute("cx", n.x); el.setAttribute("cy", n.y); el.setAttribute("r", n.radius);
    el.setAttribute("fill", n.pinned ? "#db4437" : "#4285f4"); el.setAttribute("fill-opacity", 0.8);
    el.onpointerdown = evt => {
      dragging = n.id;
      const p = point(evt);
      post("/api/pin", {id: n.id, x: p.x, y: p.y});
    };
  });
  sync(document.getElementById("labels"), "text", f.nodes.filter(n => n.labelVisible), n => n.id, (el, n) => {
    el.setAttribute("x", n.x); el.setAttribute("y", n.y + n.labelSize / 3);
    el.setAttribute("font-size", n.labelSize); el.setAttribute("text-anchor", "middle");
    el.setAttribute("pointer-events", "none");
    el.textContent = n.name;
  });
});
</script>
</body>
</html>
`
