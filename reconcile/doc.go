// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package reconcile applies batch artifacts back onto the notes table.
//
// Reconcile ensures the metadata columns exist, then applies every artifact in
// the input directory in file-name order, one transaction per artifact. Each
// document overwrites the metadata columns of the note with the same id, so
// running the same artifacts again leaves the table unchanged.
//
// Artifacts that fail to decode or validate are skipped and reported. A
// database error rolls back the current artifact and stops the run; artifacts
// applied before it stay committed.
//
// Basic usage:
//
//	r, err := reconcile.NewReconciler(store, reconcile.WithLedger(ledger))
//	if err != nil {
//	    return err
//	}
//	defer r.Release()
//
//	report, err := r.Reconcile(ctx, "processed_medical_notes")
package reconcile
