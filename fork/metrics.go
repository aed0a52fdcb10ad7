// Copyright (c) 2026 The ember developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package fork

import "github.com/embervm/ember/metrics"

var metricFetch = metrics.LazyLoadCounterVec("fork_fetch_count", []string{"op"})
