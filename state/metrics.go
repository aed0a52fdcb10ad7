// Copyright (c) 2026 The ember developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package state

import "github.com/embervm/ember/metrics"

var (
	metricAccountLoaded = metrics.LazyLoadCounterVec("state_account_load_count", []string{"source"})
	metricCheckpoint    = metrics.LazyLoadCounter("state_checkpoint_count")
	metricRevert        = metrics.LazyLoadCounter("state_revert_count")
)
