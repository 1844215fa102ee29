package report

import (
	"sort"

	"github.com/google/uuid"

	"install-pulse-service/internal/entity"
	"install-pulse-service/internal/timeline"
)

type itemKey struct {
	JobID     uuid.UUID
	ItemIndex int
}

type installerAcc struct {
	name       string
	jobs       map[uuid.UUID]struct{}
	completed  int
	netMinutes int
	m2         float64
}

type jobAcc struct {
	title       string
	specifiedM2 float64
	executedM2  float64
	netMinutes  int
}

type familyAcc struct {
	// specified area counted once per distinct (job, item), not per execution
	specified  map[itemKey]float64
	executedM2 float64
	netMinutes int
}

type itemAcc struct {
	jobTitle    string
	description string
	family      string
	specifiedM2 float64
	executedM2  float64
	netMinutes  int
	completed   bool
}

// Accumulator folds rows into grouped sums. Ratios are only derived in
// Report(), from the summed numerators and denominators, so partial
// accumulators can be merged without average-of-averages drift.
type Accumulator struct {
	executions   int
	completed    int
	m2           float64
	netMinutes   int
	grossMinutes int
	pauseMinutes int

	installers map[uuid.UUID]*installerAcc
	jobs       map[uuid.UUID]*jobAcc
	families   map[string]*familyAcc
	items      map[itemKey]*itemAcc
}

func NewAccumulator() *Accumulator {
	return &Accumulator{
		installers: map[uuid.UUID]*installerAcc{},
		jobs:       map[uuid.UUID]*jobAcc{},
		families:   map[string]*familyAcc{},
		items:      map[itemKey]*itemAcc{},
	}
}

// Add folds one execution row. Area and working-time totals only come from
// completed executions; in-flight rows still count toward execution counts,
// pause totals and the per-item drill-down.
func (a *Accumulator) Add(row Row) {
	a.executions++
	a.pauseMinutes += row.PauseMinutes

	done := row.Status == entity.StatusCompleted
	if done {
		a.completed++
		a.m2 += row.InstalledM2
		a.netMinutes += row.NetMinutes
		a.grossMinutes += row.GrossMinutes
	}

	family := row.Family
	if family == "" {
		family = UnclassifiedFamily
	}
	key := itemKey{JobID: row.JobID, ItemIndex: row.ItemIndex}

	inst := a.installers[row.InstallerID]
	if inst == nil {
		inst = &installerAcc{name: row.InstallerName, jobs: map[uuid.UUID]struct{}{}}
		a.installers[row.InstallerID] = inst
	}
	inst.jobs[row.JobID] = struct{}{}
	if done {
		inst.completed++
		inst.m2 += row.InstalledM2
		inst.netMinutes += row.NetMinutes
	}

	job := a.jobs[row.JobID]
	if job == nil {
		job = &jobAcc{title: row.JobTitle, specifiedM2: row.JobTotalM2}
		a.jobs[row.JobID] = job
	}
	if done {
		job.executedM2 += row.InstalledM2
		job.netMinutes += row.NetMinutes
	}

	fam := a.families[family]
	if fam == nil {
		fam = &familyAcc{specified: map[itemKey]float64{}}
		a.families[family] = fam
	}
	fam.specified[key] = row.ItemAreaM2
	if done {
		fam.executedM2 += row.InstalledM2
		fam.netMinutes += row.NetMinutes
	}

	item := a.items[key]
	if item == nil {
		item = &itemAcc{
			jobTitle:    row.JobTitle,
			description: row.ItemDescription,
			family:      family,
			specifiedM2: row.ItemAreaM2,
		}
		a.items[key] = item
	}
	item.executedM2 += row.InstalledM2
	item.netMinutes += row.NetMinutes
	if done {
		item.completed = true
	}
}

// Merge folds another accumulator into this one. Merging batch accumulators
// is equivalent to adding all their rows to a single one.
func (a *Accumulator) Merge(b *Accumulator) {
	a.executions += b.executions
	a.completed += b.completed
	a.m2 += b.m2
	a.netMinutes += b.netMinutes
	a.grossMinutes += b.grossMinutes
	a.pauseMinutes += b.pauseMinutes

	for id, other := range b.installers {
		inst := a.installers[id]
		if inst == nil {
			inst = &installerAcc{name: other.name, jobs: map[uuid.UUID]struct{}{}}
			a.installers[id] = inst
		}
		for jobID := range other.jobs {
			inst.jobs[jobID] = struct{}{}
		}
		inst.completed += other.completed
		inst.m2 += other.m2
		inst.netMinutes += other.netMinutes
	}

	for id, other := range b.jobs {
		job := a.jobs[id]
		if job == nil {
			job = &jobAcc{title: other.title, specifiedM2: other.specifiedM2}
			a.jobs[id] = job
		}
		job.executedM2 += other.executedM2
		job.netMinutes += other.netMinutes
	}

	for name, other := range b.families {
		fam := a.families[name]
		if fam == nil {
			fam = &familyAcc{specified: map[itemKey]float64{}}
			a.families[name] = fam
		}
		for key, area := range other.specified {
			fam.specified[key] = area
		}
		fam.executedM2 += other.executedM2
		fam.netMinutes += other.netMinutes
	}

	for key, other := range b.items {
		item := a.items[key]
		if item == nil {
			item = &itemAcc{
				jobTitle:    other.jobTitle,
				description: other.description,
				family:      other.family,
				specifiedM2: other.specifiedM2,
			}
			a.items[key] = item
		}
		item.executedM2 += other.executedM2
		item.netMinutes += other.netMinutes
		if other.completed {
			item.completed = true
		}
	}
}

// Report derives all ratios and produces deterministically ordered output.
func (a *Accumulator) Report() *Report {
	r := &Report{
		Summary: Summary{
			TotalExecutions:     a.executions,
			CompletedExecutions: a.completed,
			TotalM2:             timeline.Round2(a.m2),
			NetHours:            netHours(a.netMinutes),
			TotalPauseMinutes:   a.pauseMinutes,
			AvgProductivityM2H:  productivity(a.m2, a.netMinutes),
		},
		ByInstaller: make([]InstallerSummary, 0, len(a.installers)),
		ByJob:       make([]JobSummary, 0, len(a.jobs)),
		ByFamily:    make([]FamilySummary, 0, len(a.families)),
		ByItem:      make([]ItemSummary, 0, len(a.items)),
	}
	if a.completed > 0 {
		r.Summary.AvgDurationMinutes = timeline.Round2(float64(a.grossMinutes) / float64(a.completed))
	}

	for id, inst := range a.installers {
		r.ByInstaller = append(r.ByInstaller, InstallerSummary{
			InstallerID:     id,
			InstallerName:   inst.name,
			JobsTouched:     len(inst.jobs),
			Completed:       inst.completed,
			NetHours:        netHours(inst.netMinutes),
			TotalM2:         timeline.Round2(inst.m2),
			ProductivityM2H: productivity(inst.m2, inst.netMinutes),
		})
	}
	// leaderboard order: productivity desc, area desc, name asc
	sort.Slice(r.ByInstaller, func(i, j int) bool {
		x, y := r.ByInstaller[i], r.ByInstaller[j]
		if x.ProductivityM2H != y.ProductivityM2H {
			return x.ProductivityM2H > y.ProductivityM2H
		}
		if x.TotalM2 != y.TotalM2 {
			return x.TotalM2 > y.TotalM2
		}
		return x.InstallerName < y.InstallerName
	})

	for id, job := range a.jobs {
		r.ByJob = append(r.ByJob, JobSummary{
			JobID:             id,
			Title:             job.title,
			SpecifiedM2:       timeline.Round2(job.specifiedM2),
			ExecutedM2:        timeline.Round2(job.executedM2),
			CompletionPercent: completion(job.executedM2, job.specifiedM2),
			NetHours:          netHours(job.netMinutes),
			ProductivityM2H:   productivity(job.executedM2, job.netMinutes),
		})
	}
	sort.Slice(r.ByJob, func(i, j int) bool {
		if r.ByJob[i].Title != r.ByJob[j].Title {
			return r.ByJob[i].Title < r.ByJob[j].Title
		}
		return r.ByJob[i].JobID.String() < r.ByJob[j].JobID.String()
	})

	for name, fam := range a.families {
		var specified float64
		for _, area := range fam.specified {
			specified += area
		}
		r.ByFamily = append(r.ByFamily, FamilySummary{
			Family:            name,
			SpecifiedM2:       timeline.Round2(specified),
			ExecutedM2:        timeline.Round2(fam.executedM2),
			CompletionPercent: completion(fam.executedM2, specified),
			NetHours:          netHours(fam.netMinutes),
			ProductivityM2H:   productivity(fam.executedM2, fam.netMinutes),
		})
	}
	sort.Slice(r.ByFamily, func(i, j int) bool {
		return r.ByFamily[i].Family < r.ByFamily[j].Family
	})

	for key, item := range a.items {
		r.ByItem = append(r.ByItem, ItemSummary{
			JobID:           key.JobID,
			JobTitle:        item.jobTitle,
			ItemIndex:       key.ItemIndex,
			Description:     item.description,
			Family:          item.family,
			SpecifiedM2:     timeline.Round2(item.specifiedM2),
			ExecutedM2:      timeline.Round2(item.executedM2),
			NetMinutes:      item.netMinutes,
			ProductivityM2H: productivity(item.executedM2, item.netMinutes),
			Completed:       item.completed,
		})
	}
	sort.Slice(r.ByItem, func(i, j int) bool {
		x, y := r.ByItem[i], r.ByItem[j]
		if x.JobTitle != y.JobTitle {
			return x.JobTitle < y.JobTitle
		}
		if x.JobID != y.JobID {
			return x.JobID.String() < y.JobID.String()
		}
		return x.ItemIndex < y.ItemIndex
	})

	return r
}

// Aggregate is the one-shot fold over a complete row set.
func Aggregate(rows []Row) *Report {
	acc := NewAccumulator()
	for _, row := range rows {
		acc.Add(row)
	}
	return acc.Report()
}

func netHours(minutes int) float64 {
	return timeline.Round2(float64(minutes) / 60.0)
}

func productivity(m2 float64, netMinutes int) float64 {
	return timeline.ProductivityM2PerHour(m2, netMinutes)
}

// completion is executed/specified as a percentage. Not clamped at 100:
// over-installation is real and the report shows it.
func completion(executed, specified float64) float64 {
	if specified <= 0 {
		return 0
	}
	return timeline.Round2(executed / specified * 100)
}
