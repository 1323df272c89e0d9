// internal/browser/session/scripts.go
package session

import (
	"encoding/json"
	"fmt"
	"strings"
)

// registryScript installs (once per document) the page-side element
// registry and evaluates to it. Refs are weak: a ref whose node was collected
// or detached fails with "stale element ref".
const registryScript = `(() => {
	const key = Symbol.for('webpilot.registry');
	if (window[key]) return window[key];
	const nodes = new Map();
	const ids = new WeakMap();
	let next = 0;
	const api = {
		ref(el) {
			if (!el) return '';
			let id = ids.get(el);
			if (!id || !nodes.has(id)) {
				id = id || 'r' + (++next);
				ids.set(el, id);
				nodes.set(id, new WeakRef(el));
			}
			return id;
		},
		prune() {
			for (const [id, w] of nodes) {
				const el = w.deref();
				if (!el || !el.isConnected) nodes.delete(id);
			}
		},
		get(id) {
			const w = nodes.get(id);
			const el = w && w.deref();
			if (!el || !el.isConnected) {
				nodes.delete(id);
				throw new Error('stale element ref ' + id);
			}
			return el;
		},
		describe(el) {
			return {
				ref: api.ref(el),
				index: 0,
				parent: -1,
				tag: el.tagName.toLowerCase(),
				id: el.id || '',
				classes: el.getAttribute('class') || '',
				type: (el.getAttribute('type') || '').toLowerCase(),
				text: (el.textContent || '').trim(),
				placeholder: el.getAttribute('placeholder') || '',
				title: el.getAttribute('title') || '',
				ariaLabel: el.getAttribute('aria-label') || '',
				editable: !!el.isContentEditable,
			};
		},
	};
	Object.defineProperty(window, key, { value: api });
	return api;
})()`

// Page-side primitives. Each takes the registry as its first argument.
const (
	// For text selectors only candidates travel back: elements whose text,
	// placeholder, title or aria-label contains the query case-insensitively,
	// inputs whose placeholder the query contains, and the non-rendering
	// containers, whose text is blanked unless it matches.
	jsQuery = `(w, kind, value) => {
	const hidden = new Set(['script', 'style', 'noscript', 'template', 'head']);
	const has = (s, q) => !!s && s.toLowerCase().includes(q);
	const candidate = (el, q) => {
		const ph = el.getAttribute('placeholder') || '';
		return has(el.textContent, q) || has(ph, q) || (ph !== '' && q.includes(ph.toLowerCase())) ||
			has(el.getAttribute('title'), q) || has(el.getAttribute('aria-label'), q);
	};
	w.prune();
	let els = [];
	let q = '';
	switch (kind) {
	case 'id': {
		const el = value ? document.getElementById(value) : null;
		if (el) els = [el];
		break;
	}
	case 'class': {
		const names = value.trim().split(/\s+/).filter(Boolean);
		if (names.length) els = Array.from(document.getElementsByClassName(names.join(' ')));
		break;
	}
	case 'tag':
		els = value ? Array.from(document.getElementsByTagName(value)) : [];
		break;
	case 'text': {
		q = value.trim().toLowerCase();
		if (!q) break;
		els = Array.from(document.querySelectorAll('*')).filter((el) => hidden.has(el.localName) || candidate(el, q));
		break;
	}
	default:
		throw new Error('unsupported selector type: ' + kind);
	}
	const index = new Map();
	return els.map((el, i) => {
		const d = w.describe(el);
		if (q && !candidate(el, q)) d.text = '';
		d.index = i;
		for (let a = el.parentElement; a; a = a.parentElement) {
			if (index.has(a)) { d.parent = index.get(a); break; }
		}
		index.set(el, i);
		return d;
	});
}`

	jsDescribe = `(w, ref) => w.describe(w.get(ref))`

	jsQuerySelector = `(w, ref, css) => {
	const el = w.get(ref).querySelector(css);
	return el ? w.ref(el) : '';
}`

	jsHasAttribute = `(w, ref, name) => w.get(ref).hasAttribute(name)`

	jsBoundingRect = `(w, ref) => {
	const r = w.get(ref).getBoundingClientRect();
	return { left: r.left, top: r.top, right: r.right, bottom: r.bottom, width: r.width, height: r.height };
}`

	jsWindow = `(w) => ({
	scrollX: window.scrollX,
	scrollY: window.scrollY,
	innerWidth: window.innerWidth,
	innerHeight: window.innerHeight,
	devicePixelRatio: window.devicePixelRatio,
})`

	jsFocus = `(w, ref) => { w.get(ref).focus(); return true; }`

	jsActiveElement = `(w) => document.activeElement ? w.ref(document.activeElement) : ''`

	jsDispatch = `(w, ref, ev) => {
	const el = w.get(ref);
	const init = { bubbles: ev.bubbles, cancelable: ev.cancelable, composed: true };
	let e;
	switch (ev.class) {
	case 'KeyboardEvent':
		e = new KeyboardEvent(ev.type, { ...init, key: ev.key || '', code: ev.code || '' });
		break;
	case 'InputEvent':
		e = new InputEvent(ev.type, { ...init, data: ev.data ?? null, inputType: ev.inputType || '' });
		break;
	case 'PointerEvent':
		e = new PointerEvent(ev.type, {
			...init, view: window, clientX: ev.clientX || 0, clientY: ev.clientY || 0,
			pointerType: 'mouse', isPrimary: true, button: 0, buttons: ev.type === 'pointerdown' ? 1 : 0,
		});
		break;
	case 'MouseEvent':
		e = new MouseEvent(ev.type, { ...init, view: window, clientX: ev.clientX || 0, clientY: ev.clientY || 0, button: 0 });
		break;
	default:
		e = new Event(ev.type, init);
	}
	return el.dispatchEvent(e);
}`

	jsExecCommand = `(w, cmd, arg) => document.execCommand(cmd, false, arg)`

	jsValue = `(w, ref) => {
	const el = w.get(ref);
	return typeof el.value === 'string' ? el.value : '';
}`

	// The prototype setter bypasses instance-level overrides installed by
	// frameworks, so their value trackers see a real change.
	jsSetValue = `(w, ref, v) => {
	const el = w.get(ref);
	const proto = el instanceof HTMLTextAreaElement ? HTMLTextAreaElement.prototype
		: el instanceof HTMLInputElement ? HTMLInputElement.prototype : null;
	if (!proto) throw new Error('<' + el.tagName.toLowerCase() + '> has no value setter');
	Object.getOwnPropertyDescriptor(proto, 'value').set.call(el, v);
	return true;
}`

	jsTextContent = `(w, ref) => w.get(ref).textContent || ''`

	jsSetTextContent = `(w, ref, text) => { w.get(ref).textContent = text; return true; }`

	jsSetInnerHTML = `(w, ref, html) => { w.get(ref).innerHTML = html; return true; }`

	jsInsertTextAtEnd = `(w, ref, text) => {
	const el = w.get(ref);
	const range = document.createRange();
	range.selectNodeContents(el);
	range.collapse(false);
	const node = document.createTextNode(text);
	range.insertNode(node);
	range.setStartAfter(node);
	range.collapse(true);
	const sel = window.getSelection();
	sel.removeAllRanges();
	sel.addRange(range);
	return true;
}`

	jsSelectEnd = `(w, ref) => {
	const range = document.createRange();
	range.selectNodeContents(w.get(ref));
	range.collapse(false);
	const sel = window.getSelection();
	sel.removeAllRanges();
	sel.addRange(range);
	return true;
}`

	jsDocumentHTML = `(w) => [document.documentElement ? document.documentElement.outerHTML : '', document.readyState]`

	jsStorageItems = `(w) => {
	const out = [];
	for (let i = 0; i < localStorage.length; i++) {
		const k = localStorage.key(i);
		out.push([k, localStorage.getItem(k)]);
	}
	return out;
}`

	jsStorageGet    = `(w, k) => localStorage.getItem(k)`
	jsStorageSet    = `(w, k, v) => { localStorage.setItem(k, v); return true; }`
	jsStorageRemove = `(w, k) => { localStorage.removeItem(k); return true; }`
	jsStorageClear  = `(w) => { localStorage.clear(); return true; }`
)

// invocation builds an expression applying fn to the registry and the
// JSON-encoded args. encoding/json escapes <, > and the JS line separators,
// so the result is safe to embed verbatim.
func invocation(fn string, args ...any) (string, error) {
	var sb strings.Builder
	sb.WriteString("(")
	sb.WriteString(fn)
	sb.WriteString(")(")
	sb.WriteString(registryScript)
	for i, a := range args {
		b, err := json.Marshal(a)
		if err != nil {
			return "", fmt.Errorf("encode argument %d: %w", i, err)
		}
		sb.WriteString(", ")
		sb.Write(b)
	}
	sb.WriteString(")")
	return sb.String(), nil
}
