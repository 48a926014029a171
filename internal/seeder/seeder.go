package seeders

import (
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/repository"
)

type Seeder struct {
	DB repository.Database
}

func New(DB repository.Database) *Seeder {
	return &Seeder{
		DB: DB,
	}
}

func (seeder *Seeder) Run() {
	seeder.seedChargers()
}
