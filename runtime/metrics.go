// Copyright (c) 2026 The ember developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package runtime

import "github.com/embervm/ember/metrics"

var metricExecuted = metrics.LazyLoadCounterVec("runtime_execution_count", []string{"mode", "status"})
