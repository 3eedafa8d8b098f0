/*
Copyright © 2024 the geotag authors.
This file is part of geotag.

geotag is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

geotag is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with geotag.  If not, see <http://www.gnu.org/licenses/>.
*/

package geotag

import "github.com/sirupsen/logrus"

// logger is the package-wide structured logger used for non-fatal warnings
// (degenerate smoothing, corpus format problems, exhausted budgets). It
// defaults to logrus's standard logger and can be overridden by callers
// that want the core wired into their own logging setup.
var logger = logrus.StandardLogger()

// SetLogger overrides the logger used by the geotag package. Passing nil
// is a no-op.
func SetLogger(l *logrus.Logger) {
	if l != nil {
		logger = l
	}
}
