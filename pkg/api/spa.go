/*-
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package api

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

const indexFile = "index.html"

// spaHandler serves the dashboard bundle from disk and falls back to
// index.html for unknown paths so client-side routes survive a reload.
type spaHandler struct {
	staticPath string
	fileServer http.Handler
}

func newSPAHandler(staticPath string) spaHandler {
	return spaHandler{
		staticPath: staticPath,
		fileServer: http.FileServer(http.Dir(staticPath)),
	}
}

func (h spaHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	clean := path.Clean("/" + r.URL.Path)

	if strings.HasPrefix(clean, "/_api/") {
		http.NotFound(w, r)
		return
	}

	info, err := os.Stat(filepath.Join(h.staticPath, filepath.FromSlash(clean)))
	if err != nil || (info.IsDir() && clean != "/") {
		http.ServeFile(w, r, filepath.Join(h.staticPath, indexFile))
		return
	}

	h.fileServer.ServeHTTP(w, r)
}
