package generate

import (
	"encoding/json"
	"fmt"
	"strings"
)

// The scripted producer streams one of these canned projects. Every
// template is a complete runnable app: manifest, entrypoint and a README
// whose inline commands the runner knows how to execute.

type templateFile struct {
	path string
	body func(req Request) string
}

type appTemplate struct {
	framework string
	folders   []string
	files     []templateFile
}

func templateFor(appType string) appTemplate {
	switch normalizeAppType(appType) {
	case "flask":
		return flaskTemplate
	case "fastapi":
		return fastapiTemplate
	case "node":
		return nodeTemplate
	default:
		return streamlitTemplate
	}
}

func normalizeAppType(appType string) string {
	switch strings.ToLower(strings.TrimSpace(appType)) {
	case "flask":
		return "flask"
	case "fastapi", "api":
		return "fastapi"
	case "node", "nodejs", "express", "react", "web":
		return "node"
	default:
		return "streamlit"
	}
}

func displayName(req Request) string {
	if name := strings.TrimSpace(req.AppName); name != "" {
		return name
	}
	return "Generated App"
}

func tagline(req Request) string {
	if desc := strings.TrimSpace(req.Description); desc != "" {
		return desc
	}
	return "Built with AgentForge."
}

func bulletList(features []string) string {
	if len(features) == 0 {
		return "- Everything you asked for\n"
	}
	var b strings.Builder
	for _, f := range features {
		fmt.Fprintf(&b, "- %s\n", f)
	}
	return b.String()
}

func markdownLines(features []string, indent string) string {
	if len(features) == 0 {
		return indent + "st.markdown(\"- Everything you asked for\")\n"
	}
	var b strings.Builder
	for _, f := range features {
		fmt.Fprintf(&b, "%sst.markdown(%q)\n", indent, "- "+f)
	}
	return b.String()
}

func pyList(features []string) string {
	if len(features) == 0 {
		return "[]"
	}
	data, err := json.Marshal(features)
	if err != nil {
		return "[]"
	}
	return string(data)
}

func slug(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '-', r == '_':
			b.WriteRune('-')
		}
	}
	s := strings.Trim(b.String(), "-")
	if s == "" {
		return "generated-app"
	}
	return s
}

func pythonReadme(req Request, runCommand string) string {
	return fmt.Sprintf(`# %s

%s

## Features

%s
## Run it

Install dependencies with `+"`pip install -r requirements.txt`"+`, then start
the app with `+"`%s`"+`.
`, displayName(req), tagline(req), bulletList(req.Features), runCommand)
}

var streamlitTemplate = appTemplate{
	framework: "streamlit",
	folders:   []string{".streamlit"},
	files: []templateFile{
		{
			path: ".streamlit/config.toml",
			body: func(req Request) string {
				return `[theme]
base = "light"
primaryColor = "#2563eb"

[server]
runOnSave = false
`
			},
		},
		{
			path: "app.py",
			body: func(req Request) string {
				return fmt.Sprintf(`import streamlit as st

st.set_page_config(page_title=%q, layout="wide")

st.title(%q)
st.caption(%q)

if "items" not in st.session_state:
    st.session_state["items"] = []

with st.sidebar:
    st.header("Features")
%s
with st.form("add-item", clear_on_submit=True):
    text = st.text_input("Add an item")
    submitted = st.form_submit_button("Add")
    if submitted and text:
        st.session_state["items"].append({"text": text, "done": False})

for i, item in enumerate(st.session_state["items"]):
    left, right = st.columns([5, 1])
    with left:
        done = st.checkbox(item["text"], value=item["done"], key=f"item-{i}")
        st.session_state["items"][i]["done"] = done
    with right:
        if st.button("Remove", key=f"rm-{i}"):
            st.session_state["items"].pop(i)
            st.rerun()

open_items = sum(1 for item in st.session_state["items"] if not item["done"])
st.metric("Open items", open_items)
`, displayName(req), displayName(req), tagline(req), markdownLines(req.Features, "    "))
			},
		},
		{
			path: "requirements.txt",
			body: func(req Request) string { return "streamlit\n" },
		},
		{
			path: "README.md",
			body: func(req Request) string { return pythonReadme(req, "streamlit run app.py") },
		},
	},
}

var flaskTemplate = appTemplate{
	framework: "flask",
	folders:   []string{"templates"},
	files: []templateFile{
		{
			path: "app.py",
			body: func(req Request) string {
				return fmt.Sprintf(`import os

from flask import Flask, jsonify, render_template, request

app = Flask(__name__)

ITEMS = []
FEATURES = %s


@app.route("/")
def index():
    return render_template("index.html", title=%q, items=ITEMS, features=FEATURES)


@app.route("/api/items", methods=["GET", "POST"])
def items():
    if request.method == "POST":
        payload = request.get_json(silent=True) or {}
        text = payload.get("text", "").strip()
        if text:
            ITEMS.append(text)
    return jsonify(items=ITEMS)


if __name__ == "__main__":
    app.run(host="127.0.0.1", port=int(os.environ.get("PORT", "5000")))
`, pyList(req.Features), displayName(req))
			},
		},
		{
			path: "templates/index.html",
			body: func(req Request) string {
				return `<!doctype html>
<html>
<head>
  <meta charset="utf-8">
  <title>{{ title }}</title>
</head>
<body>
  <h1>{{ title }}</h1>
  <ul>
  {% for feature in features %}
    <li>{{ feature }}</li>
  {% endfor %}
  </ul>
  <form method="post" action="/api/items">
    <input name="text" placeholder="Add an item">
    <button type="submit">Add</button>
  </form>
  <ol>
  {% for item in items %}
    <li>{{ item }}</li>
  {% endfor %}
  </ol>
</body>
</html>
`
			},
		},
		{
			path: "requirements.txt",
			body: func(req Request) string { return "flask\n" },
		},
		{
			path: "README.md",
			body: func(req Request) string { return pythonReadme(req, "flask run") },
		},
	},
}

var fastapiTemplate = appTemplate{
	framework: "fastapi",
	folders:   nil,
	files: []templateFile{
		{
			path: "main.py",
			body: func(req Request) string {
				return fmt.Sprintf(`from fastapi import FastAPI
from fastapi.responses import HTMLResponse
from pydantic import BaseModel

app = FastAPI(title=%q)

FEATURES = %s
ITEMS = []


class Item(BaseModel):
    text: str


@app.get("/", response_class=HTMLResponse)
def index() -> str:
    rows = "".join(f"<li>{item}</li>" for item in ITEMS)
    return f"<h1>%s</h1><ul>{rows}</ul>"


@app.get("/api/features")
def list_features():
    return {"features": FEATURES}


@app.get("/api/items")
def list_items():
    return {"items": ITEMS}


@app.post("/api/items")
def add_item(item: Item):
    ITEMS.append(item.text)
    return {"items": ITEMS}
`, displayName(req), pyList(req.Features), displayName(req))
			},
		},
		{
			path: "requirements.txt",
			body: func(req Request) string { return "fastapi\nuvicorn\n" },
		},
		{
			path: "README.md",
			body: func(req Request) string { return pythonReadme(req, "uvicorn main:app") },
		},
	},
}

var nodeTemplate = appTemplate{
	framework: "express",
	folders:   []string{"public"},
	files: []templateFile{
		{
			path: "package.json",
			body: func(req Request) string {
				return fmt.Sprintf(`{
  "name": %q,
  "version": "0.1.0",
  "private": true,
  "scripts": {
    "start": "node server.js"
  },
  "dependencies": {
    "express": "^4.19.2"
  }
}
`, slug(req.AppName))
			},
		},
		{
			path: "server.js",
			body: func(req Request) string {
				return fmt.Sprintf(`const express = require("express");
const path = require("path");

const app = express();
const port = process.env.PORT || 3000;

const features = %s;
const items = [];

app.use(express.json());
app.use(express.static(path.join(__dirname, "public")));

app.get("/api/features", (req, res) => {
  res.json({ features });
});

app.get("/api/items", (req, res) => {
  res.json({ items });
});

app.post("/api/items", (req, res) => {
  const text = (req.body.text || "").trim();
  if (text) {
    items.push(text);
  }
  res.json({ items });
});

app.listen(port, "127.0.0.1", () => {
  console.log("listening on " + port);
});
`, pyList(req.Features))
			},
		},
		{
			path: "public/index.html",
			body: func(req Request) string {
				return fmt.Sprintf(`<!doctype html>
<html>
<head>
  <meta charset="utf-8">
  <title>%s</title>
</head>
<body>
  <h1>%s</h1>
  <p>%s</p>
  <input id="text" placeholder="Add an item">
  <button onclick="add()">Add</button>
  <ol id="items"></ol>
  <script>
    async function refresh() {
      const res = await fetch("/api/items");
      const data = await res.json();
      const list = document.getElementById("items");
      list.innerHTML = "";
      for (const item of data.items) {
        const li = document.createElement("li");
        li.textContent = item;
        list.appendChild(li);
      }
    }
    async function add() {
      const input = document.getElementById("text");
      await fetch("/api/items", {
        method: "POST",
        headers: { "Content-Type": "application/json" },
        body: JSON.stringify({ text: input.value })
      });
      input.value = "";
      refresh();
    }
    refresh();
  </script>
</body>
</html>
`, displayName(req), displayName(req), tagline(req))
			},
		},
		{
			path: "README.md",
			body: func(req Request) string {
				return fmt.Sprintf(`# %s

%s

## Features

%s
## Run it

Install dependencies with `+"`npm install`"+`, then start the app with
`+"`npm run start`"+`.
`, displayName(req), tagline(req), bulletList(req.Features))
			},
		},
	},
}
